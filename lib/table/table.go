package table

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrEmptyKey is returned by Put if the key is empty
var ErrEmptyKey = errors.New("key must not be empty")

// compositeKey identifies an entry across namespaces
type compositeKey struct {
	namespace string
	key       string
}

// --------------------------------------------------------------------------
// Core Table structure
// --------------------------------------------------------------------------

// Table owns all entries of a store
type Table struct {
	// mu is shared by single-key operations and held exclusively by
	// table-wide scans and bulk mutations
	mu   sync.RWMutex
	data *xsync.MapOf[compositeKey, Entry]
	now  func() time.Time
}

// Option configures a Table during initialization
type Option func(*Table)

// WithClock replaces the wall clock used for timestamps and expiry checks
func WithClock(now func() time.Time) Option {
	return func(t *Table) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates an empty table
func New(opts ...Option) *Table {
	t := &Table{
		data: xsync.NewMapOf[compositeKey, Entry](),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now returns the current time of the table clock
func (t *Table) Now() time.Time {
	return t.now()
}

// --------------------------------------------------------------------------
// Single-key operations
// --------------------------------------------------------------------------

// Put inserts or replaces the entry for (namespace, key).
// CreatedAt is set to now and ExpiresAt to now+ttl if ttl is positive.
// The stored entry is returned.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *Table) Put(namespace, key string, value any, ttl time.Duration, metadata map[string]any) (Entry, error) {
	if key == "" {
		return Entry{}, ErrEmptyKey
	}

	now := t.now()
	entry := Entry{
		Key:       key,
		Namespace: namespace,
		Value:     value,
		CreatedAt: now,
		Metadata:  metadata,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}
	entry = entry.clone()

	t.mu.RLock()
	defer t.mu.RUnlock()
	t.data.Store(compositeKey{namespace, key}, entry)

	return entry.clone(), nil
}

// Get returns the live entry for (namespace, key).
// If the entry is expired it is removed from the table and LookupExpired is returned.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *Table) Get(namespace, key string) (Entry, Lookup) {
	now := t.now()

	var (
		entry  Entry
		lookup = LookupMissing
	)

	t.mu.RLock()
	defer t.mu.RUnlock()

	// Atomic lookup, expired entries are deleted in place
	t.data.Compute(compositeKey{namespace, key}, func(old Entry, loaded bool) (Entry, bool) {
		// case the key doesn't exist
		if !loaded {
			return old, true // set delete to true because else the value will be created
		}

		// case expired
		if old.IsExpired(now) {
			lookup = LookupExpired
			return old, true
		}

		// case valid entry
		lookup = LookupFound
		entry = old.clone()
		return old, false
	})

	return entry, lookup
}

// --------------------------------------------------------------------------
// Table-wide operations
// --------------------------------------------------------------------------

// DeleteNamespace removes every entry of the namespace and returns how many were removed
//
// Thread-safety: This method is thread-safe, it blocks single-key operations while running.
func (t *Table) DeleteNamespace(namespace string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var keys []compositeKey
	t.data.Range(func(k compositeKey, _ Entry) bool {
		if k.namespace == namespace {
			keys = append(keys, k)
		}
		return true
	})

	for _, k := range keys {
		t.data.Delete(k)
	}
	return len(keys)
}

// SnapshotAll returns a consistent copy of every entry in the table, including
// entries that are expired but not yet removed. The result is ordered by
// creation time, then namespace, then key.
//
// Thread-safety: This method is thread-safe, it blocks single-key operations while scanning.
func (t *Table) SnapshotAll() []Entry {
	return t.snapshot(func(compositeKey) bool { return true })
}

// SnapshotNamespace is like SnapshotAll but only returns entries of one namespace
func (t *Table) SnapshotNamespace(namespace string) []Entry {
	return t.snapshot(func(k compositeKey) bool { return k.namespace == namespace })
}

func (t *Table) snapshot(match func(compositeKey) bool) []Entry {
	t.mu.Lock()
	entries := make([]Entry, 0, t.data.Size())
	t.data.Range(func(k compositeKey, e Entry) bool {
		if match(k) {
			entries = append(entries, e.clone())
		}
		return true
	})
	t.mu.Unlock()

	// sorting happens outside the lock
	slices.SortFunc(entries, compareEntries)
	return entries
}

// Sweep removes every expired entry and returns how many were removed.
// The exclusive lock is only held while identifying and deleting expired keys.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *Table) Sweep() int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []compositeKey
	t.data.Range(func(k compositeKey, e Entry) bool {
		if e.IsExpired(now) {
			expired = append(expired, k)
		}
		return true
	})

	for _, k := range expired {
		t.data.Delete(k)
	}
	return len(expired)
}

// Restore inserts the given entries verbatim. Entries that are already expired
// (or have no key) are skipped and not counted. If overwrite is false, existing
// entries are kept. The number of inserted entries is returned.
//
// Thread-safety: This method is thread-safe, it blocks single-key operations while running.
func (t *Table) Restore(entries []Entry, overwrite bool) int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	restored := 0
	for _, e := range entries {
		if e.Key == "" || e.IsExpired(now) {
			continue
		}

		k := compositeKey{e.Namespace, e.Key}
		if overwrite {
			t.data.Store(k, e.clone())
		} else if _, loaded := t.data.LoadOrStore(k, e.clone()); loaded {
			continue
		}
		restored++
	}
	return restored
}

// Len returns the number of physically stored entries (expired ones included)
func (t *Table) Len() int {
	return t.data.Size()
}

// Clear removes all entries
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Clear()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func compareEntries(a, b Entry) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Namespace, b.Namespace); c != 0 {
		return c
	}
	return cmp.Compare(a.Key, b.Key)
}
