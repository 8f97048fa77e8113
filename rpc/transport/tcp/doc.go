// Package tcp implements a TCP socket transport for the memkv RPC system. It
// provides the TCP specific connectors for the base package, which implements
// framing, request correlation, retries and the per-connection worker pool.
//
// Key Components:
//
//   - clientConnector: dials TCP endpoints (host:port, an optional tcp:// prefix is stripped)
//
//   - serverConnector: creates TCP listeners
//
// Accepted and dialed connections have Nagle's algorithm disabled and keep-alive
// enabled. The TCP transport does not serve metrics, use the http transport for
// GET /metrics.
package tcp
