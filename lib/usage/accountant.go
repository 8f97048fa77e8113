package usage

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/ValentinKolb/memKV/lib/table"
)

// FallbackEntrySize is the size assumed for an entry whose value can not be serialized
const FallbackEntrySize = 1024

// Snapshotter provides the consistent view the accountant scans
type Snapshotter interface {
	SnapshotAll() []table.Entry
	Now() time.Time
}

// SizeSummary condenses the entry size histogram
type SizeSummary struct {
	AverageBytes int64 `json:"averageBytes"`
	MedianBytes  int64 `json:"medianBytes"`
	P95Bytes     int64 `json:"p95Bytes"`
}

// Stats is the result of one accounting scan.
// SizeBytes and SizeDistribution are estimates, not an exact accounting.
type Stats struct {
	TotalEntries     int            `json:"totalEntries"`
	Namespaces       []string       `json:"namespaces"`
	NamespaceCounts  map[string]int `json:"namespaceCounts"`
	SizeBytes        int64          `json:"sizeBytes"`
	ExpiredEntries   int            `json:"expiredEntries"`
	OldestEntry      *time.Time     `json:"oldestEntry,omitempty"`
	NewestEntry      *time.Time     `json:"newestEntry,omitempty"`
	SweptBeforeScan  int            `json:"sweptBeforeScan"`
	SizeDistribution SizeSummary    `json:"sizeDistribution"`
	NamespaceBalance Balance        `json:"namespaceBalance"`
}

// --------------------------------------------------------------------------
// Accountant
// --------------------------------------------------------------------------

// Accountant computes Stats on demand
type Accountant struct {
	source Snapshotter
	sweep  func() int
}

// NewAccountant creates an accountant for the source. The sweep function is
// called right before every scan, it may be nil.
func NewAccountant(source Snapshotter, sweep func() int) *Accountant {
	return &Accountant{
		source: source,
		sweep:  sweep,
	}
}

// ComputeStats triggers a sweep and then performs one linear scan over a
// snapshot of the table. Entries that expired between the sweep and the scan
// are reported in ExpiredEntries and excluded from every other figure.
func (a *Accountant) ComputeStats() Stats {
	stats := Stats{
		Namespaces:      []string{},
		NamespaceCounts: make(map[string]int),
	}

	if a.sweep != nil {
		stats.SweptBeforeScan = a.sweep()
	}

	entries := a.source.SnapshotAll()
	now := a.source.Now()
	histogram := NewSizeHistogram()

	var oldest, newest time.Time
	for _, e := range entries {
		if e.IsExpired(now) {
			stats.ExpiredEntries++
			continue
		}

		stats.TotalEntries++
		stats.NamespaceCounts[e.Namespace]++
		histogram.Add(EstimateSize(e))

		if oldest.IsZero() || e.CreatedAt.Before(oldest) {
			oldest = e.CreatedAt
		}
		if newest.IsZero() || e.CreatedAt.After(newest) {
			newest = e.CreatedAt
		}
	}

	if stats.TotalEntries > 0 {
		stats.OldestEntry = &oldest
		stats.NewestEntry = &newest
	}

	counts := make([]float64, 0, len(stats.NamespaceCounts))
	for ns, n := range stats.NamespaceCounts {
		stats.Namespaces = append(stats.Namespaces, ns)
		counts = append(counts, float64(n))
	}
	slices.Sort(stats.Namespaces)

	stats.SizeBytes = histogram.Sum()
	stats.SizeDistribution = SizeSummary{
		AverageBytes: histogram.Average(),
		MedianBytes:  histogram.Percentile(50),
		P95Bytes:     histogram.Percentile(95),
	}
	stats.NamespaceBalance = NewBalance(counts)

	return stats
}

// sizedEntry is the serialized form used for size estimation
type sizedEntry struct {
	Key       string         `json:"key"`
	Namespace string         `json:"namespace"`
	Value     any            `json:"value"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EstimateSize returns the length of the serialized entry, or FallbackEntrySize
// if the entry can not be serialized
func EstimateSize(e table.Entry) int64 {
	s := sizedEntry{
		Key:       e.Key,
		Namespace: e.Namespace,
		Value:     e.Value,
		CreatedAt: e.CreatedAt,
		Metadata:  e.Metadata,
	}
	if e.HasExpiry() {
		s.ExpiresAt = &e.ExpiresAt
	}

	b, err := json.Marshal(s)
	if err != nil {
		return FallbackEntrySize
	}
	return int64(len(b))
}
