package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Shared transport settings
// --------------------------------------------------------------------------

// SocketConf holds the buffer settings of socket based transports (tcp, unix)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds the settings that only apply to TCP connections
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	ShardTypeLocalIStore ServerShardType = "local store"
)

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type of the store serving the shard
	Type ServerShardType
}

// ServerTransportConfig holds the settings of the server transport layer
type ServerTransportConfig struct {
	// Endpoint the server listens on (host:port or socket path)
	Endpoint string
	// WorkersPerConn limits the concurrent requests per connection (socket transports)
	WorkersPerConn int
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters of the server.
type ServerConfig struct {
	Shards []ServerShard

	// Store parameters
	MaxRange    int
	BTreeDegree int

	// TimeoutSecond limits the time spent on a single request by the transport
	TimeoutSecond int64

	Transport ServerTransportConfig

	// MetricsEndpoint is the address of the Prometheus metrics endpoint, empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))

	// Store settings
	addSection("Store")
	addField("Max Range", strconv.Itoa(c.MaxRange))
	addField("BTree Degree", strconv.Itoa(c.BTreeDegree))

	// Observability
	addSection("Observability")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	} else {
		addField("Metrics Endpoint", "disabled")
	}

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the settings of the client transport layer
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
