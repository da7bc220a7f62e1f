// Package tcp runs the framed base transport over TCP.
//
// Connections are tuned with the TCPConf settings of the server and client
// configuration (TCP_NODELAY, keepalive, linger, where a negative linger keeps
// the OS default). The default server buffer is 512 KB and every connection
// serves up to DefaultWorkersPerConn requests concurrently.
//
//	server := server.NewRPCServer(config, tcp.NewTCPDefaultServerTransport(), serializer.NewBinarySerializer())
//	store, err := client.NewRPCStore(100, clientConfig, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
package tcp
