package snapshot

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Algorithm names a lossless compressor for export documents
type Algorithm string

const (
	AlgorithmNone Algorithm = ""
	AlgorithmGzip Algorithm = "gzip"
	AlgorithmZstd Algorithm = "zstd"
)

// DefaultAlgorithm is used when compression is requested without naming an algorithm
const DefaultAlgorithm = AlgorithmGzip

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// the zstd encoder and decoder are safe for concurrent EncodeAll/DecodeAll calls
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// ParseAlgorithm converts a configuration string into an Algorithm.
// The empty string selects DefaultAlgorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gzip", "gz":
		return AlgorithmGzip, nil
	case "zstd", "zst":
		return AlgorithmZstd, nil
	default:
		return AlgorithmNone, errors.Errorf("unknown compression algorithm %q (use gzip or zstd)", s)
	}
}

// Suffix returns the file suffix that marks a document compressed with the algorithm
func (a Algorithm) Suffix() string {
	switch a {
	case AlgorithmGzip:
		return ".gz"
	case AlgorithmZstd:
		return ".zst"
	default:
		return ""
	}
}

// Detect determines the compression of data. The magic bytes decide; the file
// name suffix is only consulted if the content carries no known marker.
func Detect(data []byte, name string) Algorithm {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return AlgorithmGzip
	case bytes.HasPrefix(data, zstdMagic):
		return AlgorithmZstd
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return AlgorithmNone
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return AlgorithmGzip
	case ".zst":
		return AlgorithmZstd
	}
	return AlgorithmNone
}

// compress applies the algorithm to data
func compress(a Algorithm, data []byte) ([]byte, error) {
	switch a {
	case AlgorithmNone:
		return data, nil
	case AlgorithmZstd:
		return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	case AlgorithmGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.Errorf("unknown compression algorithm %q", string(a))
	}
}

// decompress reverses compress. Any failure is a data format error.
func decompress(a Algorithm, data []byte) ([]byte, error) {
	switch a {
	case AlgorithmNone:
		return data, nil
	case AlgorithmZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Wrapf(ErrDataFormat, "zstd: %v", err)
		}
		return out, nil
	case AlgorithmGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrapf(ErrDataFormat, "gzip: %v", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrapf(ErrDataFormat, "gzip: %v", err)
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrDataFormat, "unknown compression algorithm %q", string(a))
	}
}
