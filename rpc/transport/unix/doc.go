// Package unix implements a transport for the memkv RPC system using Unix domain
// sockets, for clients running on the same machine as the server.
//
// It provides the Unix socket specific connectors for the base package, which
// implements framing, request correlation, retries and the per-connection worker
// pool. The endpoint is the path of the socket file, a stale file is removed
// when the server starts listening.
package unix
