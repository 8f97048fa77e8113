package serializer

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ValentinKolb/memKV/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTStats},

		// Store request
		{
			MsgType:   common.MsgTStore,
			Key:       "user:preferences",
			Namespace: "session",
			TTLMillis: 3_600_000,
			Value:     []byte(`{"theme":"dark"}`),
			Metadata:  []byte(`{"source":"ui"}`),
		},

		// Retrieve response
		{
			MsgType: common.MsgTRetrieve,
			Result:  []byte(`{"success":true,"outcome":"found","value":"v"}`),
		},

		// Persist request
		{
			MsgType:     common.MsgTPersist,
			Action:      "export",
			FilePath:    "/tmp/memkv/export.json",
			Namespace:   "project",
			Compression: true,
			Format:      "json",
		},

		// Clear request
		{
			MsgType:   common.MsgTClear,
			Namespace: "all",
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// MsgTUnknown is skipped, it never appears on the wire
			for msgType := common.MsgTError; msgType <= common.MsgTStats; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty value slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTStore,
				Key:     "test",
				Value:   []byte{},
			},
		},
		{
			name: "Empty metadata and result slices",
			msg: common.Message{
				MsgType:  common.MsgTStore,
				Metadata: []byte{},
				Result:   []byte{},
			},
		},
		{
			name: "Negative ttl",
			msg: common.Message{
				MsgType:   common.MsgTStore,
				Key:       "k",
				TTLMillis: -1,
			},
		},
		{
			name: "Compression without other persist fields",
			msg: common.Message{
				MsgType:     common.MsgTPersist,
				Compression: true,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err = serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if tc.msg.MsgType != result.MsgType {
				t.Errorf("MsgType mismatch: expected %v, got %v", tc.msg.MsgType, result.MsgType)
			}
			if tc.msg.Key != result.Key {
				t.Errorf("Key mismatch: expected '%s', got '%s'", tc.msg.Key, result.Key)
			}
			if tc.msg.TTLMillis != result.TTLMillis {
				t.Errorf("TTLMillis mismatch: expected %d, got %d", tc.msg.TTLMillis, result.TTLMillis)
			}
			if tc.msg.Compression != result.Compression {
				t.Errorf("Compression mismatch: expected %v, got %v", tc.msg.Compression, result.Compression)
			}

			// Byte slices must keep their nil/non-nil state
			for _, pair := range []struct {
				field    string
				expected []byte
				actual   []byte
			}{
				{"Value", tc.msg.Value, result.Value},
				{"Metadata", tc.msg.Metadata, result.Metadata},
				{"Result", tc.msg.Result, result.Result},
			} {
				if (pair.expected == nil) != (pair.actual == nil) {
					t.Errorf("%s nil/non-nil mismatch: expected %v, got %v", pair.field, pair.expected, pair.actual)
				} else if !bytes.Equal(pair.expected, pair.actual) {
					t.Errorf("%s content mismatch: expected %v, got %v", pair.field, pair.expected, pair.actual)
				}
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{1, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 0, 8, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Truncated ttl",
			data:        []byte{2, 0, 4, 0, 0, 0}, // TTL flag set but only 3 bytes follow
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
