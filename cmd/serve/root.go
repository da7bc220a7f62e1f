package serve

import (
	"fmt"
	"github.com/ValentinKolb/memDB/cmd/util"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/server"
	"github.com/ValentinKolb/memDB/rpc/transport/tcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
)

const (
	// listenAddrEnv overrides the default endpoint when set
	listenAddrEnv   = "ENV_LISTEN_ADDR"
	defaultEndpoint = "0.0.0.0:50051"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the memDB server",
		Long: `Start the memDB server with the specified configuration. The configuration can be set via command line flags or environment variables.
The format of the environment variables is MEMDB_<flag> (e.g. MEMDB_MAX_RANGE=100). The listen address is also read from ENV_LISTEN_ADDR.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100", util.WrapString("Comma-separated list of shard IDs to serve. Every shard is an independent store"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, endpointDefault(), util.WrapString("The address on which the API will listen (e.g. 0.0.0.0:50051, /tmp/memdb.sock, ...)"))

	key = "max-range"
	ServeCmd.PersistentFlags().Int(key, 10, util.WrapString("Maximum number of keys a single range request returns. Larger results are truncated"))

	key = "btree-degree"
	ServeCmd.PersistentFlags().Int(key, 32, util.WrapString("Degree of the btree backing each shard"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, util.WrapString("Timeout in seconds for writing a single response"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, tcp.DefaultWorkersPerConn, util.WrapString("Maximum number of concurrent requests per connection (tcp, unix, grpc)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, tcp.DefaultBufferSize/1024, util.WrapString("Size of the socket read and write buffers (in KB)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("Address of the Prometheus metrics endpoint (e.g. 0.0.0.0:9090), empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

func endpointDefault() string {
	if addr := os.Getenv(listenAddrEnv); addr != "" {
		return addr
	}
	return defaultEndpoint
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	shards, err := parseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shards = shards

	bufferSize := viper.GetInt("buffer-size") * 1024

	serveCmdConfig.MaxRange = viper.GetInt("max-range")
	serveCmdConfig.BTreeDegree = viper.GetInt("btree-degree")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		SocketConf: common.SocketConf{
			WriteBufferSize: bufferSize,
			ReadBufferSize:  bufferSize,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:   true,
			TCPLingerSec: -1,
		},
	}

	if serveCmdConfig.MaxRange <= 0 {
		return fmt.Errorf("max-range must be positive, got %d", serveCmdConfig.MaxRange)
	}

	return nil
}

// parseShards parses a comma-separated list of shard IDs
func parseShards(list string) ([]common.ServerShard, error) {
	var shards []common.ServerShard
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		shardID, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %v", field, err)
		}
		shards = append(shards, common.ServerShard{
			ShardID: shardID,
			Type:    common.ShardTypeLocalIStore,
		})
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("at least one shard is required")
	}
	return shards, nil
}

// run starts the memDB server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetServerTransport(serveCmdConfig.Transport.ReadBufferSize, serveCmdConfig.Transport.WorkersPerConn)
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		sig := <-signals
		server.Logger.Infof("received %s, shutting down", sig)
		if err := serv.Shutdown(); err != nil {
			server.Logger.Errorf("shutdown failed: %v", err)
		}
	}()

	return serv.Serve()
}
