// Package common provides the data structures and utilities shared by the RPC
// server, the RPC client and the transports.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Which fields are used
//     depends on the message type. Factory functions create the request and response
//     messages of every store operation. Store errors travel as a return code plus
//     message and are rebuilt on the client side with GetError.
//
//   - MessageType: Enumeration of all operations, grouped by value variant
//     (scalar, dictionary, deque, set), key space operations and control messages.
//
//   - ServerConfig / ClientConfig: Configuration of server and client, including the
//     transport specific settings.
//
//   - Logger: Implementation of dragonboat's logger.ILogger on top of zerolog. Every
//     package obtains its logger via logger.GetLogger(name), InitLoggers installs the
//     factory and sets the levels.
package common
