// Package serializer turns common.Message values into bytes and back. Client
// and server must agree on the serializer; the CLI selects it with --serializer.
//
// Implementations:
//
//   - NewBinarySerializer: compact custom format. A one byte message type and a
//     two byte field bitmap are followed by the present fields only, each string
//     or byte slice prefixed by its uint32 length. This is the default.
//
//   - NewJSONSerializer: plain JSON objects, handy when inspecting traffic or
//     talking to the HTTP transport by hand.
//
//   - NewGOBSerializer: encoding/gob. Kept for comparison; it produces the
//     largest payloads and is the slowest of the three (see benchmark_test.go).
//
// Store values, metadata and operation results are JSON encoded by the common
// package before they reach a serializer, so every implementation moves the
// same opaque payloads and only the envelope differs.
//
// All implementations are stateless and safe for concurrent use.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewClearRequest("sessions"))
//	...
//	var msg common.Message
//	err = s.Deserialize(data, &msg)
package serializer
