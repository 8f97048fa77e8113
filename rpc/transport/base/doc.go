// Package base implements socket transports for the memkv RPC system independent
// of the network protocol. Protocol packages (tcp, unix) only provide connectors
// that create listeners and dial connections.
//
// Frame format:
//
//	8 bytes  request id (uint64, big endian)
//	4 bytes  payload length (uint32, big endian)
//	N bytes  serialized message
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations.
//
//   - clientTransport: Keeps one connection per endpoint and selects them round-robin.
//     Requests are multiplexed on a connection and correlated with their response by
//     the request id. Failed attempts are retried with exponential backoff on the next
//     connection, broken connections are redialed on use.
//
//   - ServerTransport: Accepts connections and runs up to maxWorkersPerConn requests of
//     a connection concurrently. Read buffers are pooled. Shutdown stops accepting
//     connections and waits until the running requests are answered.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to a connection are serialized,
//	responses are dispatched by a dedicated reader goroutine per connection.
package base
