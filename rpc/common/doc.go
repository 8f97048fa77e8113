// Package common provides the data structures shared by the memkv RPC client
// and server.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Requests carry the
//     arguments of one store operation, values and metadata are JSON encoded.
//     Responses carry the JSON encoded typed result of the operation, or an error
//     message if the request could not be handled at all.
//
//   - MessageType: Enumeration of the operations (store, retrieve, persist, clear,
//     stats) and the error response.
//
//   - ServerConfig: Configuration of a server: endpoint, request timeout, sweep
//     interval, export settings and log level. StoreOptions converts it into the
//     options of the local store.
//
//   - ClientConfig: Configuration of a client: endpoints, timeout and retries.
//
//   - Logger: Custom logger format plugged into the dragonboat logger package,
//     which all memkv packages use to create their named loggers.
package common
