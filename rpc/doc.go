// Package rpc exposes a memkv store over the network. It acts as the
// communication layer between clients and a server owning a local store.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (HTTP with a metrics endpoint, TCP and Unix sockets).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: store.IStore implementation forwarding every operation to a server.
//
//   - server: Owns the local store and handles incoming requests.
package rpc
