package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ValentinKolb/memKV/lib/table"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("snapshot")

const (
	// Version is the document format version written by Export
	Version = "1.0"
	// AllNamespaces is the namespace filter recorded for an unfiltered export
	AllNamespaces = "all"
	// Format is the only supported document encoding
	Format = "json"
	// DefaultExportedBy is recorded in the document metadata if nothing else is configured
	DefaultExportedBy = "memkv"
)

var (
	// ErrDataFormat is returned if an import payload can not be decompressed or decoded
	ErrDataFormat = errors.New("invalid snapshot data")
	// ErrIO is returned if a snapshot file can not be read or written
	ErrIO = errors.New("snapshot i/o failure")
)

// --------------------------------------------------------------------------
// Document
// --------------------------------------------------------------------------

// Document is the self-describing export format
type Document struct {
	Version     string          `json:"version"`
	Timestamp   time.Time       `json:"timestamp"`
	Namespace   string          `json:"namespace"`
	Compression bool            `json:"compression"`
	Format      string          `json:"format"`
	Entries     []DocumentEntry `json:"entries"`
	Metadata    Metadata        `json:"metadata"`
}

// DocumentEntry is one exported entry. Timestamps are encoded as RFC 3339.
type DocumentEntry struct {
	Key       string         `json:"key"`
	Namespace string         `json:"namespace"`
	Value     any            `json:"value"`
	CreatedAt *time.Time     `json:"createdAt"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Metadata describes the export itself
type Metadata struct {
	TotalEntries int    `json:"totalEntries"`
	ExportedBy   string `json:"exportedBy"`
	Platform     string `json:"platform"`
	ExportID     string `json:"exportId,omitempty"`
	Checksum     string `json:"checksum,omitempty"` // xxhash64 of the compact entries array
}

// rawDocument is used on import to keep the encoded entries for checksum verification
type rawDocument struct {
	Version   string          `json:"version"`
	Namespace string          `json:"namespace"`
	Entries   json.RawMessage `json:"entries"`
	Metadata  Metadata        `json:"metadata"`
}

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// Codec exports entries of a table to documents and imports them back
type Codec struct {
	table      *table.Table
	algorithm  Algorithm
	exportedBy string
}

// Option configures a Codec
type Option func(*Codec)

// WithAlgorithm selects the compressor used for compressed exports
func WithAlgorithm(a Algorithm) Option {
	return func(c *Codec) {
		if a != AlgorithmNone {
			c.algorithm = a
		}
	}
}

// WithExportedBy sets the label recorded in metadata.exportedBy
func WithExportedBy(label string) Option {
	return func(c *Codec) {
		if label != "" {
			c.exportedBy = label
		}
	}
}

// NewCodec creates a codec for the table
func NewCodec(t *table.Table, opts ...Option) *Codec {
	c := &Codec{
		table:      t,
		algorithm:  DefaultAlgorithm,
		exportedBy: DefaultExportedBy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Algorithm returns the compressor used for compressed exports
func (c *Codec) Algorithm() Algorithm {
	return c.algorithm
}

// Export is the result of Codec.Export
type Export struct {
	Data      []byte
	Count     int
	ExportID  string
	Algorithm Algorithm // AlgorithmNone for uncompressed exports
}

// Export encodes the live entries of the namespace (all namespaces if empty)
// into a document. The table is only locked while taking the snapshot.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Codec) Export(namespace string, compressed bool) (Export, error) {
	var snapshot []table.Entry
	if namespace == "" {
		snapshot = c.table.SnapshotAll()
	} else {
		snapshot = c.table.SnapshotNamespace(namespace)
	}

	now := c.table.Now()
	entries := make([]DocumentEntry, 0, len(snapshot))
	for _, e := range snapshot {
		if e.IsExpired(now) {
			continue
		}
		entries = append(entries, toDocumentEntry(e))
	}

	encodedEntries, err := json.Marshal(entries)
	if err != nil {
		return Export{}, errors.Wrapf(ErrDataFormat, "encode entries: %v", err)
	}

	doc := Document{
		Version:     Version,
		Timestamp:   now.UTC(),
		Namespace:   namespace,
		Compression: compressed,
		Format:      Format,
		Entries:     entries,
		Metadata: Metadata{
			TotalEntries: len(entries),
			ExportedBy:   c.exportedBy,
			Platform:     runtime.GOOS + "/" + runtime.GOARCH,
			ExportID:     uuid.NewString(),
			Checksum:     checksum(encodedEntries),
		},
	}
	if doc.Namespace == "" {
		doc.Namespace = AllNamespaces
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Export{}, errors.Wrapf(ErrDataFormat, "encode document: %v", err)
	}

	result := Export{
		Count:    len(entries),
		ExportID: doc.Metadata.ExportID,
	}
	if compressed {
		result.Algorithm = c.algorithm
	}
	if result.Data, err = compress(result.Algorithm, data); err != nil {
		return Export{}, err
	}

	Logger.Debugf("exported %d entries (namespace %s, compression %q)", result.Count, doc.Namespace, string(result.Algorithm))
	return result, nil
}

// ImportResult reports the outcome of Codec.Import
type ImportResult struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

// Import decodes a document (compressed or not) and restores its entries into
// the table, overwriting existing ones. Entries that are already expired are
// skipped. The name is only used as a compression hint if the content carries
// no marker. A structurally invalid document fails as a whole with ErrDataFormat
// before anything is restored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Codec) Import(data []byte, name string) (ImportResult, error) {
	plain, err := decompress(Detect(data, name), data)
	if err != nil {
		return ImportResult{}, err
	}

	entries, err := decode(plain)
	if err != nil {
		return ImportResult{}, err
	}

	restored := c.table.Restore(entries, true)
	Logger.Debugf("imported %d of %d entries", restored, len(entries))
	return ImportResult{
		Imported: restored,
		Total:    len(entries),
	}, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// decode parses and validates a plain document
func decode(plain []byte) ([]table.Entry, error) {
	var raw rawDocument
	if err := json.Unmarshal(plain, &raw); err != nil {
		return nil, errors.Wrapf(ErrDataFormat, "decode document: %v", err)
	}

	if raw.Version == "" {
		return nil, errors.Wrap(ErrDataFormat, "missing version")
	}
	if major, _, _ := strings.Cut(raw.Version, "."); major != "1" {
		return nil, errors.Wrapf(ErrDataFormat, "unsupported version %q", raw.Version)
	}
	if len(raw.Entries) == 0 || bytes.Equal(raw.Entries, []byte("null")) {
		return nil, errors.Wrap(ErrDataFormat, "missing entries")
	}

	if raw.Metadata.Checksum != "" {
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw.Entries); err != nil {
			return nil, errors.Wrapf(ErrDataFormat, "decode entries: %v", err)
		}
		if sum := checksum(compact.Bytes()); sum != raw.Metadata.Checksum {
			return nil, errors.Wrapf(ErrDataFormat, "checksum mismatch (document %s, computed %s)", raw.Metadata.Checksum, sum)
		}
	}

	// numbers are kept exact and converted like stored values
	var docEntries []DocumentEntry
	dec := json.NewDecoder(bytes.NewReader(raw.Entries))
	dec.UseNumber()
	if err := dec.Decode(&docEntries); err != nil {
		return nil, errors.Wrapf(ErrDataFormat, "decode entries: %v", err)
	}

	entries := make([]table.Entry, 0, len(docEntries))
	for i, de := range docEntries {
		switch {
		case de.Key == "":
			return nil, errors.Wrapf(ErrDataFormat, "entry %d: missing key", i)
		case de.Namespace == "":
			return nil, errors.Wrapf(ErrDataFormat, "entry %d: missing namespace", i)
		case de.CreatedAt == nil:
			return nil, errors.Wrapf(ErrDataFormat, "entry %d: missing createdAt", i)
		}
		entries = append(entries, fromDocumentEntry(de))
	}
	return entries, nil
}

func toDocumentEntry(e table.Entry) DocumentEntry {
	created := e.CreatedAt.UTC()
	de := DocumentEntry{
		Key:       e.Key,
		Namespace: e.Namespace,
		Value:     e.Value,
		CreatedAt: &created,
		Metadata:  e.Metadata,
	}
	if e.HasExpiry() {
		expires := e.ExpiresAt.UTC()
		de.ExpiresAt = &expires
	}
	return de
}

func fromDocumentEntry(de DocumentEntry) table.Entry {
	e := table.Entry{
		Key:       de.Key,
		Namespace: de.Namespace,
		Value:     table.ConvertNumbers(de.Value),
		CreatedAt: *de.CreatedAt,
	}
	if de.Metadata != nil {
		e.Metadata = table.ConvertNumbers(de.Metadata).(map[string]any)
	}
	if de.ExpiresAt != nil {
		e.ExpiresAt = *de.ExpiresAt
	}
	return e
}

func checksum(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}
