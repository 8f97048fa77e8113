package table

import (
	"maps"
	"time"
)

// DefaultNamespace is used by callers when no namespace is given
const DefaultNamespace = "default"

// --------------------------------------------------------------------------
// Entry Type (value with timestamps and metadata)
// --------------------------------------------------------------------------

// Entry stores a value together with its namespace, key and timestamps
type Entry struct {
	Key       string         // Unique within the namespace
	Namespace string         // Logical partition of the key space
	Value     any            // Opaque payload
	CreatedAt time.Time      // Fixed at insertion
	ExpiresAt time.Time      // Zero means the entry never expires
	Metadata  map[string]any // Opaque side channel, never interpreted
}

// HasExpiry returns whether the entry was stored with a ttl
func (e Entry) HasExpiry() bool {
	return !e.ExpiresAt.IsZero()
}

// IsExpired returns whether the entry is logically dead at the given instant
func (e Entry) IsExpired(now time.Time) bool {
	return e.HasExpiry() && !now.Before(e.ExpiresAt)
}

// clone returns a copy of the entry with its own metadata map.
// The value itself is opaque and shared.
func (e Entry) clone() Entry {
	if e.Metadata != nil {
		e.Metadata = maps.Clone(e.Metadata)
	}
	return e
}

// --------------------------------------------------------------------------
// Lookup result
// --------------------------------------------------------------------------

// Lookup describes the outcome of a Get
type Lookup int

const (
	LookupMissing Lookup = iota // no entry was stored under the key
	LookupFound                 // a live entry was returned
	LookupExpired               // an expired entry was found and removed
)

func (l Lookup) String() string {
	switch l {
	case LookupMissing:
		return "missing"
	case LookupFound:
		return "found"
	case LookupExpired:
		return "expired"
	default:
		return "unknown"
	}
}
