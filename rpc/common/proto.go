package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ValentinKolb/memKV/lib/store"
	"github.com/ValentinKolb/memKV/lib/table"
	"github.com/pkg/errors"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
// Values, metadata and results travel as JSON documents inside the message, so
// every serializer can carry arbitrary payloads.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Entry fields
	Key       string `json:"key,omitempty"`       // Used for: Store, Retrieve
	Namespace string `json:"namespace,omitempty"` // Used for: Store, Retrieve, Clear, Persist (export filter)
	TTLMillis int64  `json:"ttl,omitempty"`       // Used for: Store
	Value     []byte `json:"value,omitempty"`     // Used for: Store (JSON encoded value)
	Metadata  []byte `json:"metadata,omitempty"`  // Used for: Store (JSON encoded metadata)

	// Persist fields
	Action      string `json:"action,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
	Compression bool   `json:"compression,omitempty"`
	Format      string `json:"format,omitempty"`

	// Response only fields
	Result []byte `json:"result,omitempty"` // JSON encoded operation result
	Err    string `json:"err,omitempty"`    // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewStoreRequest creates a new Store request
func NewStoreRequest(key string, value any, opts store.StoreOptions) (*Message, error) {
	encodedValue, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode value")
	}

	msg := &Message{
		MsgType:   MsgTStore,
		Key:       key,
		Namespace: opts.Namespace,
		TTLMillis: opts.TTL.Milliseconds(),
		Value:     encodedValue,
	}
	// sub-millisecond TTLs must keep their sign, zero means "never expires"
	if msg.TTLMillis == 0 {
		if opts.TTL > 0 {
			msg.TTLMillis = 1
		} else if opts.TTL < 0 {
			msg.TTLMillis = -1
		}
	}

	if opts.Metadata != nil {
		if msg.Metadata, err = json.Marshal(opts.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to encode metadata")
		}
	}
	return msg, nil
}

// StoreArgs decodes the value and options of a Store request
func (m *Message) StoreArgs() (value any, opts store.StoreOptions, err error) {
	if len(m.Value) > 0 {
		if value, err = table.DecodeValue(m.Value); err != nil {
			return nil, opts, errors.Wrap(err, "failed to decode value")
		}
	}
	if len(m.Metadata) > 0 {
		metadata, err := table.DecodeValue(m.Metadata)
		if err != nil {
			return nil, opts, errors.Wrap(err, "failed to decode metadata")
		}
		if metadata != nil {
			var ok bool
			if opts.Metadata, ok = metadata.(map[string]any); !ok {
				return nil, opts, errors.New("failed to decode metadata: not a JSON object")
			}
		}
	}
	opts.Namespace = m.Namespace
	opts.TTL = time.Duration(m.TTLMillis) * time.Millisecond
	return value, opts, nil
}

// NewRetrieveRequest creates a new Retrieve request
func NewRetrieveRequest(key, namespace string) *Message {
	return &Message{
		MsgType:   MsgTRetrieve,
		Key:       key,
		Namespace: namespace,
	}
}

// NewPersistRequest creates a new Persist request
func NewPersistRequest(req store.PersistRequest) *Message {
	return &Message{
		MsgType:     MsgTPersist,
		Namespace:   req.Namespace,
		Action:      string(req.Action),
		FilePath:    req.FilePath,
		Compression: req.Compression,
		Format:      req.Format,
	}
}

// PersistArgs converts a Persist request back into a store.PersistRequest
func (m *Message) PersistArgs() store.PersistRequest {
	return store.PersistRequest{
		Action:      store.PersistAction(m.Action),
		FilePath:    m.FilePath,
		Namespace:   m.Namespace,
		Compression: m.Compression,
		Format:      m.Format,
	}
}

// NewClearRequest creates a new Clear request
func NewClearRequest(namespace string) *Message {
	return &Message{
		MsgType:   MsgTClear,
		Namespace: namespace,
	}
}

// NewStatsRequest creates a new Stats request
func NewStatsRequest() *Message {
	return &Message{
		MsgType: MsgTStats,
	}
}

// NewResultResponse creates a response of the given type carrying the result
func NewResultResponse(msgType MessageType, result any) *Message {
	encoded, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("failed to encode %s result: %s", msgType, err))
	}
	return &Message{
		MsgType: msgType,
		Result:  encoded,
	}
}

// DecodeResult decodes the result of a response into v.
// Numbers in untyped fields are decoded as json.Number, see table.ConvertNumbers.
func (m *Message) DecodeResult(v any) error {
	if len(m.Result) == 0 {
		return errors.Errorf("%s response carries no result", m.MsgType)
	}
	dec := json.NewDecoder(bytes.NewReader(m.Result))
	dec.UseNumber()
	return errors.Wrapf(dec.Decode(v), "failed to decode %s result", m.MsgType)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTStore:
		return "store"
	case MsgTRetrieve:
		return "retrieve"
	case MsgTPersist:
		return "persist"
	case MsgTClear:
		return "clear"
	case MsgTStats:
		return "stats"
	case MsgTError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "store":
		*t = MsgTStore
	case "retrieve":
		*t = MsgTRetrieve
	case "persist":
		*t = MsgTPersist
	case "clear":
		*t = MsgTClear
	case "stats":
		*t = MsgTStats
	case "error":
		*t = MsgTError
	case "unknown":
		*t = MsgTUnknown
	default:
		return errors.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTStore    // Store an entry
	MsgTRetrieve // Retrieve an entry
	MsgTPersist  // Export or import entries
	MsgTClear    // Clear a namespace
	MsgTStats    // Compute usage statistics
)
