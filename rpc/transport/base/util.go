package base

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/pkg/errors"
)

const (
	// frameHeaderSize is the size of requestID (8 bytes) plus payload length (4 bytes)
	frameHeaderSize = 12

	// maxFrameSize bounds the payload of a single frame
	maxFrameSize = 64 << 20
)

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, requestID uint64, data []byte) error {
	if len(data) > maxFrameSize {
		return errors.Errorf("frame of %d bytes exceeds the limit of %d bytes", len(data), maxFrameSize)
	}

	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], requestID)
	binary.BigEndian.PutUint32(header[8:], uint32(len(data)))

	// header and payload in a single write
	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from r. The payload is read into buf if it is large
// enough, otherwise a new slice is allocated. The returned payload aliases buf.
func readFrame(r io.Reader, buf []byte) (requestID uint64, data []byte, err error) {
	var header [frameHeaderSize]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}

	requestID = binary.BigEndian.Uint64(header[:8])
	contentLength := int(binary.BigEndian.Uint32(header[8:]))
	if contentLength > maxFrameSize {
		return requestID, nil, errors.Errorf("frame of %d bytes exceeds the limit of %d bytes", contentLength, maxFrameSize)
	}

	// If no data, return empty slice
	if contentLength == 0 {
		return requestID, []byte{}, nil
	}

	if cap(buf) < contentLength {
		buf = make([]byte, contentLength)
	}
	data = buf[:contentLength]

	if _, err = io.ReadFull(r, data); err != nil {
		return requestID, nil, err
	}
	return requestID, data, nil
}
