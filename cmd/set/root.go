package set

import (
	"fmt"
	"github.com/ValentinKolb/memDB/cmd/util"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// SetCommands represents the set command group
	SetCommands = &cobra.Command{
		Use:                "set",
		Short:              "Perform set operations",
		PersistentPreRunE:  setupSetClient,
		PersistentPostRunE: closeSetClient,
	}

	addCmd = &cobra.Command{
		Use:   "add [key] [member]",
		Short: "Adds a member to the set at key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, _, err := rpcStore.SAdd([]byte(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("size=%d\n", size)
			return nil
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [key] [member]",
		Short: "Removes a member from the set at key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, _, err := rpcStore.SDel([]byte(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("size=%d\n", size)
			return nil
		},
	}

	lenCmd = &cobra.Command{
		Use:   "len [key]",
		Short: "Prints the size of the set at key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := rpcStore.SLen([]byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("size=%d\n", size)
			return nil
		},
	}
)

func init() {
	util.SetupRPCClientFlags(SetCommands, 100)

	SetCommands.AddCommand(addCmd)
	SetCommands.AddCommand(delCmd)
	SetCommands.AddCommand(lenCmd)
}

func setupSetClient(cmd *cobra.Command, _ []string) (err error) {
	rpcStore, err = util.NewStoreClient(cmd)
	return err
}

func closeSetClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}
