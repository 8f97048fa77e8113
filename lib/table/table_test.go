package table

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock is a clock that only moves when told to
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestPutGet(t *testing.T) {
	clock := newManualClock()
	tbl := New(WithClock(clock.Now))

	stored, err := tbl.Put("ns", "a", map[string]any{"x": 1}, 0, map[string]any{"tag": "t"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), stored.CreatedAt)
	assert.False(t, stored.HasExpiry())

	got, lookup := tbl.Get("ns", "a")
	require.Equal(t, LookupFound, lookup)
	assert.Equal(t, map[string]any{"x": 1}, got.Value)
	assert.Equal(t, "t", got.Metadata["tag"])

	// same key in another namespace is a different entry
	_, lookup = tbl.Get("other", "a")
	assert.Equal(t, LookupMissing, lookup)
}

func TestPutEmptyKey(t *testing.T) {
	tbl := New()
	_, err := tbl.Put("ns", "", "v", 0, nil)
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.Equal(t, 0, tbl.Len())
}

func TestPutReplacesWholesale(t *testing.T) {
	clock := newManualClock()
	tbl := New(WithClock(clock.Now))

	_, err := tbl.Put("ns", "k", "v1", time.Minute, map[string]any{"old": true})
	require.NoError(t, err)

	clock.Advance(time.Second)
	second, err := tbl.Put("ns", "k", "v2", 0, nil)
	require.NoError(t, err)

	got, lookup := tbl.Get("ns", "k")
	require.Equal(t, LookupFound, lookup)
	assert.Equal(t, "v2", got.Value)
	assert.Nil(t, got.Metadata)
	assert.False(t, got.HasExpiry())
	assert.Equal(t, second.CreatedAt, got.CreatedAt)
	assert.Equal(t, 1, tbl.Len())
}

func TestMetadataIsCopied(t *testing.T) {
	tbl := New()
	meta := map[string]any{"a": 1}
	_, err := tbl.Put("ns", "k", "v", 0, meta)
	require.NoError(t, err)

	meta["a"] = 2
	got, _ := tbl.Get("ns", "k")
	assert.Equal(t, 1, got.Metadata["a"])

	got.Metadata["a"] = 3
	again, _ := tbl.Get("ns", "k")
	assert.Equal(t, 1, again.Metadata["a"])
}

func TestLazyExpiryOnGet(t *testing.T) {
	clock := newManualClock()
	tbl := New(WithClock(clock.Now))

	stored, err := tbl.Put("ns", "k", "v", 100*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, stored.CreatedAt.Add(100*time.Millisecond), stored.ExpiresAt)

	clock.Advance(99 * time.Millisecond)
	_, lookup := tbl.Get("ns", "k")
	assert.Equal(t, LookupFound, lookup)

	clock.Advance(time.Millisecond)
	_, lookup = tbl.Get("ns", "k")
	assert.Equal(t, LookupExpired, lookup)

	// the expired entry was removed by the read
	assert.Equal(t, 0, tbl.Len())
	_, lookup = tbl.Get("ns", "k")
	assert.Equal(t, LookupMissing, lookup)
}

func TestDeleteNamespace(t *testing.T) {
	tbl := New()
	for i := 0; i < 5; i++ {
		_, _ = tbl.Put("a", fmt.Sprintf("k%d", i), i, 0, nil)
		_, _ = tbl.Put("b", fmt.Sprintf("k%d", i), i, 0, nil)
	}

	assert.Equal(t, 5, tbl.DeleteNamespace("a"))
	assert.Equal(t, 0, tbl.DeleteNamespace("a"))
	assert.Equal(t, 0, tbl.DeleteNamespace("missing"))

	assert.Empty(t, tbl.SnapshotNamespace("a"))
	assert.Len(t, tbl.SnapshotNamespace("b"), 5)
}

func TestSnapshotOrderAndExpired(t *testing.T) {
	clock := newManualClock()
	tbl := New(WithClock(clock.Now))

	_, _ = tbl.Put("ns", "first", 1, 0, nil)
	clock.Advance(time.Millisecond)
	_, _ = tbl.Put("ns", "second", 2, time.Millisecond, nil)
	clock.Advance(time.Millisecond)
	_, _ = tbl.Put("other", "third", 3, 0, nil)
	clock.Advance(time.Millisecond)

	all := tbl.SnapshotAll()
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Key)
	assert.Equal(t, "second", all[1].Key)
	assert.Equal(t, "third", all[2].Key)

	// snapshots include expired entries so callers can count them
	assert.True(t, all[1].IsExpired(clock.Now()))

	ns := tbl.SnapshotNamespace("ns")
	require.Len(t, ns, 2)
	assert.Empty(t, tbl.SnapshotNamespace("nope"))
}

func TestSweep(t *testing.T) {
	clock := newManualClock()
	tbl := New(WithClock(clock.Now))

	_, _ = tbl.Put("ns", "short", 1, time.Second, nil)
	_, _ = tbl.Put("ns", "long", 2, time.Hour, nil)
	_, _ = tbl.Put("ns", "forever", 3, 0, nil)

	assert.Equal(t, 0, tbl.Sweep())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, tbl.Sweep())
	assert.Equal(t, 2, tbl.Len())

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, tbl.Sweep())
	_, lookup := tbl.Get("ns", "forever")
	assert.Equal(t, LookupFound, lookup)
}

func TestRestore(t *testing.T) {
	clock := newManualClock()
	tbl := New(WithClock(clock.Now))
	now := clock.Now()

	entries := []Entry{
		{Key: "live", Namespace: "ns", Value: "v", CreatedAt: now.Add(-time.Hour)},
		{Key: "ttl", Namespace: "ns", Value: "v", CreatedAt: now.Add(-time.Minute), ExpiresAt: now.Add(time.Minute)},
		{Key: "dead", Namespace: "ns", Value: "v", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Second)},
		{Key: "", Namespace: "ns", Value: "v"},
	}

	assert.Equal(t, 2, tbl.Restore(entries, true))

	got, lookup := tbl.Get("ns", "live")
	require.Equal(t, LookupFound, lookup)
	assert.Equal(t, now.Add(-time.Hour), got.CreatedAt)

	_, lookup = tbl.Get("ns", "dead")
	assert.Equal(t, LookupMissing, lookup)

	// without overwrite existing entries win
	_, _ = tbl.Put("ns", "live", "newer", 0, nil)
	assert.Equal(t, 0, tbl.Restore(entries[:1], false))
	got, _ = tbl.Get("ns", "live")
	assert.Equal(t, "newer", got.Value)
}

func TestConcurrentWritesSameKey(t *testing.T) {
	tbl := New()
	const writers = 64

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := tbl.Put("ns", "shared", i, 0, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, lookup := tbl.Get("ns", "shared")
	require.Equal(t, LookupFound, lookup)
	v, ok := got.Value.(int)
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, 0)
	assert.Less(t, v, writers)
	assert.Equal(t, 1, tbl.Len())
}

func TestSnapshotDuringWrites(t *testing.T) {
	tbl := New()
	const perWriter = 200

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, _ = tbl.Put(fmt.Sprintf("w%d", w), fmt.Sprintf("k%d", i), i, 0, nil)
			}
		}(w)
	}

	// every snapshot must contain each key at most once
	for i := 0; i < 20; i++ {
		seen := make(map[string]bool)
		for _, e := range tbl.SnapshotAll() {
			id := e.Namespace + "/" + e.Key
			assert.False(t, seen[id], "entry %s seen twice", id)
			seen[id] = true
		}
	}
	wg.Wait()
	assert.Len(t, tbl.SnapshotAll(), 4*perWriter)
}

func TestClear(t *testing.T) {
	tbl := New()
	_, _ = tbl.Put("ns", "k", "v", 0, nil)
	tbl.Clear()
	assert.Equal(t, 0, tbl.Len())
}
