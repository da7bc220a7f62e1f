package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/cmd/util"
	"github.com/spf13/cobra"
	"io"
	"time"
)

var (
	rangeLower     string
	rangeUpper     string
	rangeLowerExcl bool
	rangeUpperExcl bool

	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Stores a scalar value under a key",
		Long:  "Stores a scalar value under a key. The value is parsed as JSON (42, true, \"text\", {\"a\":1}), anything else is stored as a string.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := rpcStore.Set([]byte(args[0]), util.ParseValue(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("set at %s\n", ts.Format(time.RFC3339Nano))
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Gets the scalar value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := rpcStore.Get([]byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Println(util.FormatValue(v))
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key regardless of its type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := rpcStore.Del([]byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("deleted at %s\n", ts.Format(time.RFC3339Nano))
			return nil
		},
	}
	rangeCmd = &cobra.Command{
		Use:   "range",
		Short: "Lists the keys between two bounds in ascending order",
		Long:  "Lists the keys between --lower and --upper in ascending order. Both bounds are required. The server truncates the result at its configured maximum.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := rpcStore.Range(
				util.ParseBound(rangeLower, rangeLowerExcl),
				util.ParseBound(rangeUpper, rangeUpperExcl),
			)
			if err != nil {
				return err
			}
			defer stream.Close()

			for {
				key, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Println(string(key))
			}
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the database of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	rangeCmd.Flags().StringVar(&rangeLower, "lower", "", "Lower bound of the range")
	rangeCmd.Flags().StringVar(&rangeUpper, "upper", "", "Upper bound of the range")
	rangeCmd.Flags().BoolVar(&rangeLowerExcl, "lower-excl", false, "Exclude the lower bound")
	rangeCmd.Flags().BoolVar(&rangeUpperExcl, "upper-excl", false, "Exclude the upper bound")
}
