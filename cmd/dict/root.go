package dict

import (
	"fmt"
	"github.com/ValentinKolb/memDB/cmd/util"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// DictCommands represents the dictionary command group
	DictCommands = &cobra.Command{
		Use:                "dict",
		Short:              "Perform dictionary operations",
		PersistentPreRunE:  setupDictClient,
		PersistentPostRunE: closeDictClient,
	}

	setCmd = &cobra.Command{
		Use:   "set [key] [field] [value]",
		Short: "Stores a value under a field of the dictionary at key",
		Long:  "Stores a value under a field of the dictionary at key. A missing dictionary is created. The value is parsed as JSON, anything else is stored as a string.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, _, err := rpcStore.DSet([]byte(args[0]), []byte(args[1]), util.ParseValue(args[2]))
			if err != nil {
				return err
			}
			fmt.Printf("size=%d\n", size)
			return nil
		},
	}

	getCmd = &cobra.Command{
		Use:   "get [key] [field]",
		Short: "Gets the value of a field of the dictionary at key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := rpcStore.DGet([]byte(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Println(util.FormatValue(v))
			return nil
		},
	}

	hasCmd = &cobra.Command{
		Use:   "has [key] [field]",
		Short: "Checks whether the dictionary at key contains a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := rpcStore.DHas([]byte(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("found=%v\n", found)
			return nil
		},
	}
)

func init() {
	util.SetupRPCClientFlags(DictCommands, 100)

	DictCommands.AddCommand(setCmd)
	DictCommands.AddCommand(getCmd)
	DictCommands.AddCommand(hasCmd)
}

func setupDictClient(cmd *cobra.Command, _ []string) (err error) {
	rpcStore, err = util.NewStoreClient(cmd)
	return err
}

func closeDictClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}
