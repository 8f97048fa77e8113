// Package transport defines the interfaces for RPC communication between a memkv
// client and server. Transports move opaque serialized messages; they neither
// know the message format nor the store operations.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receive requests, pass them to the registered handler and serve metrics.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
package transport
