package serializer

import (
	"encoding/binary"

	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/pkg/errors"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: 1 byte message type, 2 bytes field flags (big endian), followed by the
// present fields in flag order. Strings and byte slices are prefixed with a
// uint32 length, the TTL is a uint64 and the compression flag has no payload.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey         uint16 = 1 << 0
	hasNamespace   uint16 = 1 << 1
	hasTTL         uint16 = 1 << 2
	hasValue       uint16 = 1 << 3
	hasMetadata    uint16 = 1 << 4
	hasAction      uint16 = 1 << 5
	hasFilePath    uint16 = 1 << 6
	hasCompression uint16 = 1 << 7
	hasFormat      uint16 = 1 << 8
	hasResult      uint16 = 1 << 9
	hasErr         uint16 = 1 << 10
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	buf := make([]byte, headerSize, b.sizeBytes(msg))
	buf[0] = byte(msg.MsgType)

	var flags uint16
	appendString := func(flag uint16, s string) {
		if s != "" {
			flags |= flag
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
			buf = append(buf, s...)
		}
	}
	appendBytes := func(flag uint16, p []byte) {
		if p != nil {
			flags |= flag
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(p)))
			buf = append(buf, p...)
		}
	}

	appendString(hasKey, msg.Key)
	appendString(hasNamespace, msg.Namespace)
	if msg.TTLMillis != 0 {
		flags |= hasTTL
		buf = binary.BigEndian.AppendUint64(buf, uint64(msg.TTLMillis))
	}
	appendBytes(hasValue, msg.Value)
	appendBytes(hasMetadata, msg.Metadata)
	appendString(hasAction, msg.Action)
	appendString(hasFilePath, msg.FilePath)
	if msg.Compression {
		flags |= hasCompression
	}
	appendString(hasFormat, msg.Format)
	appendBytes(hasResult, msg.Result)
	appendString(hasErr, msg.Err)

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(buf[1:headerSize], flags)
	return buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return errors.New("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:headerSize])
	r := &binaryReader{data: data, pos: headerSize}

	var err error
	readString := func(flag uint16, name string, dst *string) {
		if err == nil && flags&flag != 0 {
			var p []byte
			if p, err = r.next(name); err == nil {
				*dst = string(p)
			}
		}
	}
	readBytes := func(flag uint16, name string, dst *[]byte) {
		if err == nil && flags&flag != 0 {
			var p []byte
			if p, err = r.next(name); err == nil {
				// empty but non-nil slices survive the round trip
				*dst = append(make([]byte, 0, len(p)), p...)
			}
		}
	}

	readString(hasKey, "key", &msg.Key)
	readString(hasNamespace, "namespace", &msg.Namespace)
	if err == nil && flags&hasTTL != 0 {
		var ttl uint64
		if ttl, err = r.uint64("ttl"); err == nil {
			msg.TTLMillis = int64(ttl)
		}
	}
	readBytes(hasValue, "value", &msg.Value)
	readBytes(hasMetadata, "metadata", &msg.Metadata)
	readString(hasAction, "action", &msg.Action)
	readString(hasFilePath, "file path", &msg.FilePath)
	msg.Compression = flags&hasCompression != 0
	readString(hasFormat, "format", &msg.Format)
	readBytes(hasResult, "result", &msg.Result)
	readString(hasErr, "error", &msg.Err)

	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// binaryReader reads length prefixed fields from a serialized message
type binaryReader struct {
	data []byte
	pos  int
}

// next reads a uint32 length followed by that many bytes
func (r *binaryReader) next(name string) ([]byte, error) {
	if r.pos+4 > len(r.data) {
		return nil, errors.Errorf("data too short for %s length", name)
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4

	if n < 0 || r.pos+n > len(r.data) {
		return nil, errors.Errorf("data too short for %s data", name)
	}
	p := r.data[r.pos : r.pos+n]
	r.pos += n
	return p, nil
}

// uint64 reads a big endian uint64
func (r *binaryReader) uint64(name string) (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, errors.Errorf("data too short for %s", name)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	for _, s := range []string{msg.Key, msg.Namespace, msg.Action, msg.FilePath, msg.Format, msg.Err} {
		if s != "" {
			size += 4 + len(s) // 4 bytes for length + string
		}
	}
	for _, p := range [][]byte{msg.Value, msg.Metadata, msg.Result} {
		if p != nil {
			size += 4 + len(p) // 4 bytes for length + bytes
		}
	}
	if msg.TTLMillis != 0 {
		size += 8 // uint64
	}

	return size
}
