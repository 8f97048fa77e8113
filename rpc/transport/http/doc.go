// Package http implements an HTTP-based transport layer for RPC communication
// with a memkv server. It provides concrete implementations of the transport
// interfaces defined in the parent package.
//
// The package focuses on:
//   - Client-side HTTP transport for sending RPC requests to servers
//   - Server-side HTTP transport for receiving and handling RPC requests
//   - Round-robin load balancing and retries across multiple server endpoints
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport, posting serialized
//     messages to <endpoint>/rpc. A failed request is retried on the next endpoint
//     until the configured number of attempts is used up.
//
//   - ServerTransport: Implements IRPCServerTransport. It serves
//     POST /rpc (serialized request in, serialized response out) and
//     GET /metrics (Prometheus text format). Handler exposes the routes without
//     starting a server, for tests and embedding.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	an atomic round-robin counter to select server endpoints.
package http
