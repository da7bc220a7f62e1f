package cmd

import (
	"fmt"
	"github.com/ValentinKolb/memDB/cmd/dict"
	"github.com/ValentinKolb/memDB/cmd/kv"
	"github.com/ValentinKolb/memDB/cmd/queue"
	"github.com/ValentinKolb/memDB/cmd/serve"
	"github.com/ValentinKolb/memDB/cmd/set"
	"github.com/ValentinKolb/memDB/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "memdb",
		Short: "in-memory multi-type key-value store",
		Long: fmt.Sprintf(`memDB (v%s)

An in-memory key-value store whose keys hold scalars, dictionaries,
sets or deques. Each shard is served by a single actor which makes
every operation linearizable.`, Version),
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of memDB",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memDB v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(dict.DictCommands)
	RootCmd.AddCommand(queue.QueueCommands)
	RootCmd.AddCommand(set.SetCommands)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary, proto)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "grpc", util.WrapString("transport to use (grpc, http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
