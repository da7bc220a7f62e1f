package util

import (
	"fmt"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/ValentinKolb/memDB/lib/value"
	"github.com/ValentinKolb/memDB/rpc/client"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/serializer"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/ValentinKolb/memDB/rpc/transport/grpc"
	"github.com/ValentinKolb/memDB/rpc/transport/http"
	"github.com/ValentinKolb/memDB/rpc/transport/tcp"
	"github.com/ValentinKolb/memDB/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/structpb"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by the cli
	EnvPrefix = "memdb"

	// DefaultEndpoint is the address the client connects to if nothing else is configured
	DefaultEndpoint = "localhost:50051"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// InitConfig loads .env files and binds viper to the MEMDB_ environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command, defaultShard int) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "shard"
	cmd.PersistentFlags().Int(key, defaultShard, WrapString("ID of the shard to connect to"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, DefaultEndpoint, WrapString("The address of the memDB server. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry a request that could not be sent"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http and grpc)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http and grpc)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval in seconds (tcp only)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time in seconds, negative keeps the OS default (tcp only)"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch name := viper.GetString("serializer"); name {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	case "proto":
		return serializer.NewProtoSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}

// GetTransport creates the client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch name := viper.GetString("transport"); name {
	case "grpc":
		return grpc.NewGrpcClientTransport(), nil
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// GetServerTransport creates the server transport based on configuration.
// bufferSize and workersPerConn only apply to the socket transports.
func GetServerTransport(bufferSize, workersPerConn int) (transport.IRPCServerTransport, error) {
	switch name := viper.GetString("transport"); name {
	case "grpc":
		return grpc.NewGrpcServerTransport(), nil
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(bufferSize, workersPerConn), nil
	case "unix":
		return unix.NewUnixServerTransport(bufferSize, workersPerConn), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return uint64(viper.GetInt("shard"))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// NewStoreClient binds the flags of cmd and connects an RPC store client
// to the configured shard.
func NewStoreClient(cmd *cobra.Command) (store.IStore, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}

	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}

	t, err := GetTransport()
	if err != nil {
		return nil, err
	}

	return client.NewRPCStore(GetShardID(), *GetClientConfig(), t, s)
}

// --------------------------------------------------------------------------
// Values
// --------------------------------------------------------------------------

// ParseValue turns a command line argument into a payload.
// JSON input keeps its type, anything else is taken as a string.
func ParseValue(arg string) *structpb.Value {
	return value.ParseJSON(arg)
}

// FormatValue renders a payload for terminal output
func FormatValue(v *structpb.Value) string {
	return value.FormatJSON(v)
}

// ParseBound builds a range bound from a flag value.
// An empty key yields an unbounded bound which the server rejects.
func ParseBound(key string, exclusive bool) db.Bound {
	switch {
	case key == "":
		return db.Unbounded()
	case exclusive:
		return db.Excluded([]byte(key))
	default:
		return db.Included([]byte(key))
	}
}
