package kv

import (
	"github.com/ValentinKolb/memDB/cmd/util"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform scalar and key space operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands, 100)

	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(rangeCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the RPC store client
func setupKVClient(cmd *cobra.Command, _ []string) (err error) {
	rpcStore, err = util.NewStoreClient(cmd)
	return err
}

func closeKVClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}
