// Package client implements the RPC client of memkv. It provides an
// implementation of the store.IStore interface that forwards every operation
// to a remote server.
//
// Key Components:
//
//   - NewRPCStore: Factory function that creates a client implementing the store.IStore
//     interface. Requests are encoded with the configured serializer and sent through
//     the configured transport. The typed results of the server are decoded back, so
//     callers see the same result structs as with a local store.
//
// Error Handling:
//
//	Operation failures reported by the server keep their return code. Transport or
//	serialization failures are reported as a failed result with RetCInternalError.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    2,
//	}
//
//	s, err := client.NewRPCStore(config, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer s.Destroy()
//
//	s.Store("user:preferences", map[string]any{"theme": "dark"}, store.StoreOptions{Namespace: "session"})
//	res := s.Retrieve("user:preferences", "session")
//
// Values travel as JSON, so a retrieved value has the shape encoding/json
// produces (numbers become float64, objects map[string]any).
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from multiple goroutines.
package client
