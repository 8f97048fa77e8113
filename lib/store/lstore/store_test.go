package lstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/memKV/lib/snapshot"
	"github.com/ValentinKolb/memKV/lib/store"
	storetesting "github.com/ValentinKolb/memKV/lib/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test(t *testing.T) {
	storetesting.RunIStoreTests(t, "LocalStore", func(exportDir string) store.IStore {
		opts := DefaultOptions()
		opts.ExportDir = exportDir
		return NewLocalStore(opts)
	})

	storetesting.RunIStoreTests(t, "LocalStore(zstd)", func(exportDir string) store.IStore {
		opts := DefaultOptions()
		opts.ExportDir = exportDir
		opts.Compression = snapshot.AlgorithmZstd
		opts.SweepInterval = 10 * time.Millisecond
		return NewLocalStore(opts)
	})
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore(t *testing.T) (*LocalStore, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	opts := DefaultOptions()
	opts.Clock = clock.Now
	opts.ExportDir = t.TempDir()

	s := NewLocalStore(opts)
	t.Cleanup(func() { _ = s.Destroy() })
	return s, clock
}

func TestExpiryWithClock(t *testing.T) {
	s, clock := newClockedStore(t)

	res := s.Store("a", "v", store.StoreOptions{Namespace: "ns1", TTL: 100 * time.Millisecond})
	require.True(t, res.Success)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, clock.Now().Add(100*time.Millisecond), *res.ExpiresAt)

	clock.Advance(200 * time.Millisecond)

	// stats observe the expired entry through the triggered sweep
	stats := s.Stats()
	require.True(t, stats.Success)
	assert.Equal(t, 1, stats.Stats.SweptBeforeScan)
	assert.NotContains(t, stats.Stats.Namespaces, "ns1")

	got := s.Retrieve("a", "ns1")
	assert.True(t, got.Success)
	assert.Equal(t, store.OutcomeNotFound, got.Outcome)
	assert.Equal(t, store.RetCNotFound, got.Code)
}

func TestRetrieveExpiredOutcome(t *testing.T) {
	s, clock := newClockedStore(t)

	s.Store("a", "v", store.StoreOptions{TTL: time.Second})
	clock.Advance(time.Second)

	got := s.Retrieve("a", "")
	assert.True(t, got.Success)
	assert.False(t, got.Found())
	assert.Equal(t, store.OutcomeExpired, got.Outcome)
	assert.Equal(t, store.RetCExpired, got.Code)
	assert.Nil(t, got.Value)
	assert.NoError(t, got.Err())
}

func TestDefaultExportPath(t *testing.T) {
	s, _ := newClockedStore(t)
	s.Store("b", "v", store.StoreOptions{Namespace: "ns2"})

	plain := s.Persist(context.Background(), store.PersistRequest{Action: store.ActionExport})
	require.True(t, plain.Success, plain.Error)
	assert.Equal(t, filepath.Join(s.opts.ExportDir, DefaultExportFile), plain.FilePath)
	assert.Empty(t, plain.Compression)
	assert.NotEmpty(t, plain.ExportID)

	packed := s.Persist(context.Background(), store.PersistRequest{Action: store.ActionExport, Compression: true})
	require.True(t, packed.Success, packed.Error)
	assert.Equal(t, filepath.Join(s.opts.ExportDir, DefaultExportFile+".gz"), packed.FilePath)
	assert.Equal(t, "gzip", packed.Compression)

	// a path that already carries the suffix is kept as is
	explicit := filepath.Join(s.opts.ExportDir, "x.json.gz")
	again := s.Persist(context.Background(), store.PersistRequest{Action: store.ActionExport, FilePath: explicit, Compression: true})
	require.True(t, again.Success, again.Error)
	assert.Equal(t, explicit, again.FilePath)

	// compression is detected from content on import
	s.Clear("ns2")
	imp := s.Persist(context.Background(), store.PersistRequest{Action: store.ActionImport, FilePath: packed.FilePath})
	require.True(t, imp.Success, imp.Error)
	assert.Equal(t, "gzip", imp.Compression)
	assert.Equal(t, 1, imp.Imported)
}

func TestExportToUnwritablePath(t *testing.T) {
	s, _ := newClockedStore(t)
	s.Store("k", "v", store.StoreOptions{})

	// a regular file can not be used as a directory
	blocker := filepath.Join(s.opts.ExportDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	res := s.Persist(context.Background(), store.PersistRequest{
		Action:   store.ActionExport,
		FilePath: filepath.Join(blocker, "export.json"),
	})
	assert.False(t, res.Success)
	assert.Equal(t, store.RetCIOFailure, res.Code)
	assert.NotEmpty(t, res.Error)
	assert.False(t, res.Timestamp.IsZero())

	var se *store.Error
	require.ErrorAs(t, res.Err(), &se)
	assert.Equal(t, store.RetCIOFailure, se.Code)
}

func TestConcurrentExportsToSamePath(t *testing.T) {
	s, _ := newClockedStore(t)
	for i := 0; i < 100; i++ {
		s.Store(string(rune('a'+i%26))+time.Duration(i).String(), i, store.StoreOptions{Namespace: "bulk"})
	}

	path := filepath.Join(s.opts.ExportDir, "shared.json")
	var wg sync.WaitGroup
	results := make([]store.PersistResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Persist(context.Background(), store.PersistRequest{Action: store.ActionExport, FilePath: path})
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.True(t, r.Success, r.Error)
		assert.Equal(t, 100, r.Exported)
	}

	s.Clear("bulk")
	imp := s.Persist(context.Background(), store.PersistRequest{Action: store.ActionImport, FilePath: path})
	require.True(t, imp.Success, imp.Error)
	assert.Equal(t, 100, imp.Imported)
}

func TestCancelledPersist(t *testing.T) {
	s, _ := newClockedStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Persist(ctx, store.PersistRequest{Action: store.ActionExport})
	assert.False(t, res.Success)
	assert.Equal(t, store.RetCIOFailure, res.Code)
}

func TestDestroy(t *testing.T) {
	s := NewLocalStore(nil)
	s.Store("k", "v", store.StoreOptions{})
	assert.True(t, s.scheduler.Running())

	require.NoError(t, s.Destroy())
	require.NoError(t, s.Destroy())
	assert.False(t, s.scheduler.Running())
	assert.Equal(t, 0, s.table.Len())

	res := s.Store("k", "v", store.StoreOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, store.RetCInternalError, res.Code)
	assert.False(t, s.Retrieve("k", "").Success)
	assert.False(t, s.Stats().Success)
}

func TestWritePrometheus(t *testing.T) {
	s, _ := newClockedStore(t)
	s.Store("k", "v", store.StoreOptions{})
	s.Retrieve("k", "")
	s.Retrieve("missing", "")

	var buf bytes.Buffer
	s.WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, `memkv_operations_total{op="store",code="Success"} 1`)
	assert.Contains(t, out, `memkv_operations_total{op="retrieve",code="NotFound"} 1`)
	assert.Contains(t, out, "memkv_entries 1")
}

func TestStoreKeepsPrivateCopy(t *testing.T) {
	s, _ := newClockedStore(t)

	value := map[string]any{"tags": []any{"a"}}
	metadata := map[string]any{"owner": "x"}
	require.True(t, s.Store("k", value, store.StoreOptions{Metadata: metadata}).Success)

	value["tags"].([]any)[0] = "changed"
	value["extra"] = 1
	metadata["owner"] = "y"

	got := s.Retrieve("k", "")
	require.True(t, got.Found())
	assert.Equal(t, map[string]any{"tags": []any{"a"}}, got.Value)
	assert.Equal(t, map[string]any{"owner": "x"}, got.Metadata)
}

func TestStoreRejectsUnencodableValue(t *testing.T) {
	s, _ := newClockedStore(t)

	res := s.Store("k", make(chan int), store.StoreOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, store.RetCInvalidArgument, res.Code)

	res = s.Store("k", "v", store.StoreOptions{Metadata: map[string]any{"f": func() {}}})
	assert.False(t, res.Success)
	assert.Equal(t, store.RetCInvalidArgument, res.Code)

	assert.Equal(t, store.OutcomeNotFound, s.Retrieve("k", "").Outcome)
}

func TestRelativePersistPathsResolveBelowExportDir(t *testing.T) {
	s, _ := newClockedStore(t)
	s.Store("k", "v", store.StoreOptions{})

	exp := s.Persist(context.Background(), store.PersistRequest{Action: store.ActionExport, FilePath: "backups/today.json"})
	require.True(t, exp.Success, exp.Error)
	assert.Equal(t, filepath.Join(s.opts.ExportDir, "backups", "today.json"), exp.FilePath)

	outside := filepath.Join(t.TempDir(), "victim", "file.txt")
	res := s.Persist(context.Background(), store.PersistRequest{Action: store.ActionExport, FilePath: outside})
	assert.False(t, res.Success)
	assert.Equal(t, store.RetCInvalidArgument, res.Code)
	assert.Contains(t, res.Error, snapshot.ErrPath.Error())
	_, err := os.Stat(filepath.Dir(outside))
	assert.True(t, os.IsNotExist(err))
}
