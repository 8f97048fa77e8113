// Package server implements the RPC server of memkv. It owns a single local
// store and exposes its operations through a pluggable transport and serializer.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter for the store
//     operations, translating RPC requests to store.IStore method calls and
//     encoding the typed results into the response.
//
//   - RPCServer: Creates the store from the configuration, registers the request
//     handler and the metrics writer at the transport and shuts both down on
//     SIGINT/SIGTERM or Close.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint:            "0.0.0.0:8080",
//	  TimeoutSecond:       5,
//	  SweepIntervalSecond: 60,
//	  ExportDir:           "/var/lib/memkv",
//	  Compression:         "gzip",
//	  LogLevel:            "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  http.NewHttpServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server handles concurrent requests, each request is processed
//	independently against the store. Serve should be called only once.
package server
