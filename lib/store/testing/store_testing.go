package testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/memKV/lib/store"
)

// StoreFactory creates a new instance of an IStore implementation whose persist
// paths are resolved below exportDir
type StoreFactory func(exportDir string) store.IStore

// RunIStoreTests runs a comprehensive test suite for an IStore implementation.
// Values are compared in the JSON form the store keeps them in, so remote
// implementations can be tested with the same suite.
func RunIStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		newStore := func(t *testing.T) (store.IStore, string) {
			dir := t.TempDir()
			return factory(dir), dir
		}

		t.Run("Store&Retrieve", func(t *testing.T) {
			s, _ := newStore(t)
			testStoreRetrieve(t, s)
		})

		t.Run("DefaultNamespace", func(t *testing.T) {
			s, _ := newStore(t)
			testDefaultNamespace(t, s)
		})

		t.Run("Overwrite", func(t *testing.T) {
			s, _ := newStore(t)
			testOverwrite(t, s)
		})

		t.Run("InvalidArguments", func(t *testing.T) {
			s, _ := newStore(t)
			testInvalidArguments(t, s)
		})

		t.Run("Expiry", func(t *testing.T) {
			s, _ := newStore(t)
			testExpiry(t, s)
		})

		t.Run("ClearIsolation", func(t *testing.T) {
			s, _ := newStore(t)
			testClearIsolation(t, s)
		})

		t.Run("ExportImport", func(t *testing.T) {
			s, dir := newStore(t)
			testExportImport(t, s, dir)
		})

		t.Run("CompressedExportImport", func(t *testing.T) {
			s, dir := newStore(t)
			testCompressedExportImport(t, s, dir)
		})

		t.Run("NumbersSurviveExport", func(t *testing.T) {
			s, dir := newStore(t)
			testNumbersSurviveExport(t, s, dir)
		})

		t.Run("PersistFailures", func(t *testing.T) {
			s, dir := newStore(t)
			testPersistFailures(t, s, dir)
		})

		t.Run("PathsStayInExportDir", func(t *testing.T) {
			s, dir := newStore(t)
			testPathsStayInExportDir(t, s, dir)
		})

		t.Run("Stats", func(t *testing.T) {
			s, _ := newStore(t)
			testStats(t, s)
		})

		t.Run("ConcurrentWrites", func(t *testing.T) {
			s, _ := newStore(t)
			testConcurrentWrites(t, s)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func destroy(t *testing.T, s store.IStore) {
	if err := s.Destroy(); err != nil {
		t.Errorf("Destroy failed: %v", err)
	}
}

func mustStore(t *testing.T, s store.IStore, key string, value any, opts store.StoreOptions) store.StoreResult {
	t.Helper()
	res := s.Store(key, value, opts)
	if !res.Success {
		t.Fatalf("Store(%s) failed: %v", key, res.Err())
	}
	return res
}

func expectValue(t *testing.T, s store.IStore, key, namespace string, want any) {
	t.Helper()
	res := s.Retrieve(key, namespace)
	if !res.Found() {
		t.Fatalf("Expected %s/%s to be found, got outcome %q (%v)", namespace, key, res.Outcome, res.Err())
	}
	if !reflect.DeepEqual(res.Value, want) {
		t.Errorf("Expected value %v for %s/%s, got %v", want, namespace, key, res.Value)
	}
}

func expectOutcome(t *testing.T, s store.IStore, key, namespace string, want store.Outcome) {
	t.Helper()
	res := s.Retrieve(key, namespace)
	if !res.Success {
		t.Fatalf("Retrieve(%s/%s) failed: %v", namespace, key, res.Err())
	}
	if res.Outcome != want {
		t.Errorf("Expected outcome %q for %s/%s, got %q", want, namespace, key, res.Outcome)
	}
}

func expectCode(t *testing.T, r store.Result, want store.RetCode) {
	t.Helper()
	if r.Success {
		t.Errorf("Expected failure with code %s, got success", want)
		return
	}
	if r.Code != want {
		t.Errorf("Expected code %s, got %s (%s)", want, r.Code, r.Error)
	}
	if r.Timestamp.IsZero() {
		t.Errorf("Expected failure result to carry a timestamp")
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testStoreRetrieve(t *testing.T, s store.IStore) {
	defer destroy(t, s)

	value := map[string]any{"x": int64(1), "ratio": 0.5, "tags": []any{"a", "b"}}
	before := time.Now()
	res := mustStore(t, s, "a", value, store.StoreOptions{
		Namespace: "ns1",
		TTL:       time.Minute,
		Metadata:  map[string]any{"source": "suite"},
	})

	if res.Namespace != "ns1" || res.Key != "a" {
		t.Errorf("Expected ack for ns1/a, got %s/%s", res.Namespace, res.Key)
	}
	if res.ExpiresAt == nil {
		t.Fatalf("Expected an expiry instant for a ttl write")
	}
	if d := res.ExpiresAt.Sub(before.Add(time.Minute)); d < 0 || d > 5*time.Second {
		t.Errorf("Expected expiresAt close to now+ttl, off by %s", d)
	}

	got := s.Retrieve("a", "ns1")
	if !got.Found() {
		t.Fatalf("Expected entry to be found, got %q", got.Outcome)
	}
	if !reflect.DeepEqual(got.Value, value) {
		t.Errorf("Expected value %v, got %v", value, got.Value)
	}
	if got.Metadata["source"] != "suite" {
		t.Errorf("Expected metadata to be returned, got %v", got.Metadata)
	}
	if got.CreatedAt == nil || got.ExpiresAt == nil || !got.ExpiresAt.Equal(*res.ExpiresAt) {
		t.Errorf("Expected timestamps to match the store acknowledgement")
	}

	// same key in another namespace does not exist
	expectOutcome(t, s, "a", "ns2", store.OutcomeNotFound)
	expectOutcome(t, s, "never-stored", "ns1", store.OutcomeNotFound)
}

func testDefaultNamespace(t *testing.T, s store.IStore) {
	defer destroy(t, s)

	res := mustStore(t, s, "k", "v", store.StoreOptions{})
	if res.Namespace != "default" {
		t.Errorf("Expected namespace to resolve to default, got %q", res.Namespace)
	}
	if res.ExpiresAt != nil {
		t.Errorf("Expected no expiry without ttl, got %v", res.ExpiresAt)
	}

	expectValue(t, s, "k", "", "v")
	expectValue(t, s, "k", "default", "v")
}

func testOverwrite(t *testing.T, s store.IStore) {
	defer destroy(t, s)

	first := mustStore(t, s, "k", "v1", store.StoreOptions{Namespace: "ns", TTL: time.Hour, Metadata: map[string]any{"old": true}})
	time.Sleep(2 * time.Millisecond)
	second := mustStore(t, s, "k", "v2", store.StoreOptions{Namespace: "ns"})

	got := s.Retrieve("k", "ns")
	if !got.Found() || got.Value != "v2" {
		t.Fatalf("Expected overwritten value v2, got %v (%q)", got.Value, got.Outcome)
	}
	if got.Metadata != nil {
		t.Errorf("Expected metadata to be replaced wholesale, got %v", got.Metadata)
	}
	if got.ExpiresAt != nil {
		t.Errorf("Expected expiry to be replaced wholesale, got %v", got.ExpiresAt)
	}
	if !second.CreatedAt.After(*first.CreatedAt) {
		t.Errorf("Expected overwrite to reset createdAt")
	}
}

func testInvalidArguments(t *testing.T, s store.IStore) {
	defer destroy(t, s)

	expectCode(t, s.Store("", "v", store.StoreOptions{}).Result, store.RetCInvalidArgument)
	expectCode(t, s.Store("k", "v", store.StoreOptions{TTL: -time.Second}).Result, store.RetCInvalidArgument)
	expectCode(t, s.Retrieve("", "ns").Result, store.RetCInvalidArgument)
	expectCode(t, s.Clear("").Result, store.RetCInvalidArgument)
	expectCode(t, s.Persist(context.Background(), store.PersistRequest{Action: "backup"}).Result, store.RetCInvalidArgument)
	expectCode(t, s.Persist(context.Background(), store.PersistRequest{Action: store.ActionImport}).Result, store.RetCInvalidArgument)
	expectCode(t, s.Persist(context.Background(), store.PersistRequest{Action: store.ActionExport, Format: "xml"}).Result, store.RetCInvalidArgument)

	// rejected writes leave no trace
	expectOutcome(t, s, "k", "", store.OutcomeNotFound)
}

func testExpiry(t *testing.T, s store.IStore) {
	defer destroy(t, s)

	mustStore(t, s, "a", map[string]any{"x": 1}, store.StoreOptions{Namespace: "ns1", TTL: 100 * time.Millisecond})
	expectValue(t, s, "a", "ns1", map[string]any{"x": int64(1)})

	time.Sleep(200 * time.Millisecond)

	res := s.Retrieve("a", "ns1")
	if !res.Success {
		t.Fatalf("Retrieve of an expired entry must not fail: %v", res.Err())
	}
	if res.Outcome == store.OutcomeFound {
		t.Fatalf("Expected expired entry to be absent, got %v", res.Value)
	}

	stats := s.Stats()
	if !stats.Success {
		t.Fatalf("Stats failed: %v", stats.Err())
	}
	for _, ns := range stats.Stats.Namespaces {
		if ns == "ns1" {
			t.Errorf("Expected ns1 to be gone from stats, got %v", stats.Stats.Namespaces)
		}
	}

	// an expired entry is reported as expired at most once, unless a sweep was faster
	mustStore(t, s, "b", "v", store.StoreOptions{Namespace: "ns3", TTL: 50 * time.Millisecond})
	time.Sleep(100 * time.Millisecond)
	if first := s.Retrieve("b", "ns3"); first.Outcome != store.OutcomeExpired && first.Outcome != store.OutcomeNotFound {
		t.Errorf("Expected expired or not found outcome, got %q", first.Outcome)
	}
	expectOutcome(t, s, "b", "ns3", store.OutcomeNotFound)
}

func testClearIsolation(t *testing.T, s store.IStore) {
	defer destroy(t, s)

	for i := 0; i < 5; i++ {
		mustStore(t, s, fmt.Sprintf("k%d", i), i, store.StoreOptions{Namespace: "a"})
		mustStore(t, s, fmt.Sprintf("k%d", i), i, store.StoreOptions{Namespace: "b"})
	}

	res := s.Clear("a")
	if !res.Success || res.Removed != 5 {
		t.Errorf("Expected 5 removed entries, got %d (%v)", res.Removed, res.Err())
	}

	for i := 0; i < 5; i++ {
		expectOutcome(t, s, fmt.Sprintf("k%d", i), "a", store.OutcomeNotFound)
		expectOutcome(t, s, fmt.Sprintf("k%d", i), "b", store.OutcomeFound)
	}

	// clearing an empty namespace is not an error
	res = s.Clear("a")
	if !res.Success || res.Removed != 0 {
		t.Errorf("Expected clearing an empty namespace to succeed with 0, got %d (%v)", res.Removed, res.Err())
	}

	// "all" is an ordinary name
	mustStore(t, s, "k0", 0, store.StoreOptions{Namespace: "all"})
	res = s.Clear("all")
	if !res.Success || res.Removed != 1 {
		t.Errorf("Expected clearing \"all\" to remove only its own entry, got %d (%v)", res.Removed, res.Err())
	}
	expectOutcome(t, s, "k0", "b", store.OutcomeFound)
}

func testExportImport(t *testing.T, s store.IStore, dir string) {
	defer destroy(t, s)
	ctx := context.Background()
	path := filepath.Join(dir, "ns2.json")

	mustStore(t, s, "b", "v", store.StoreOptions{Namespace: "ns2"})
	mustStore(t, s, "other", "x", store.StoreOptions{Namespace: "ns3"})

	exp := s.Persist(ctx, store.PersistRequest{Action: store.ActionExport, FilePath: "ns2.json", Namespace: "ns2", Format: "json"})
	if !exp.Success {
		t.Fatalf("Export failed: %v", exp.Err())
	}
	if exp.Exported != 1 || exp.FilePath != path {
		t.Errorf("Expected 1 entry exported to %s, got %d to %s", path, exp.Exported, exp.FilePath)
	}

	s.Clear("ns2")
	expectOutcome(t, s, "b", "ns2", store.OutcomeNotFound)

	imp := s.Persist(ctx, store.PersistRequest{Action: store.ActionImport, FilePath: "ns2.json"})
	if !imp.Success {
		t.Fatalf("Import failed: %v", imp.Err())
	}
	if imp.FilePath != path {
		t.Errorf("Expected import from %s, got %s", path, imp.FilePath)
	}
	if imp.Imported != 1 || imp.Total != 1 {
		t.Errorf("Expected 1 of 1 imported, got %d of %d", imp.Imported, imp.Total)
	}
	expectValue(t, s, "b", "ns2", "v")
	expectValue(t, s, "other", "ns3", "x")
}

func testCompressedExportImport(t *testing.T, s store.IStore, dir string) {
	defer destroy(t, s)
	ctx := context.Background()

	values := map[string]any{
		"s": "text",
		"n": int64(42),
		"f": 2.5,
		"m": map[string]any{"nested": []any{int64(1), "two", nil}},
	}
	for k, v := range values {
		mustStore(t, s, k, v, store.StoreOptions{Namespace: "data"})
	}

	plain := s.Persist(ctx, store.PersistRequest{Action: store.ActionExport, FilePath: "plain.json"})
	packed := s.Persist(ctx, store.PersistRequest{Action: store.ActionExport, FilePath: "packed.json", Compression: true})
	if !plain.Success || !packed.Success {
		t.Fatalf("Export failed: %v / %v", plain.Err(), packed.Err())
	}
	if packed.FilePath == filepath.Join(dir, "packed.json") || !strings.HasPrefix(packed.FilePath, filepath.Join(dir, "packed.json")) {
		t.Errorf("Expected a compression suffix on %s", packed.FilePath)
	}
	if _, err := os.Stat(packed.FilePath); err != nil {
		t.Fatalf("Expected compressed export to exist: %v", err)
	}

	snapshot := func(path string) map[string]any {
		s.Clear("data")
		res := s.Persist(ctx, store.PersistRequest{Action: store.ActionImport, FilePath: path})
		if !res.Success || res.Imported != len(values) {
			t.Fatalf("Import of %s failed: %d imported (%v)", path, res.Imported, res.Err())
		}
		state := make(map[string]any)
		for k := range values {
			r := s.Retrieve(k, "data")
			state[k] = r.Value
		}
		return state
	}

	fromPlain := snapshot(plain.FilePath)
	fromPacked := snapshot(packed.FilePath)
	if !reflect.DeepEqual(fromPlain, fromPacked) || !reflect.DeepEqual(fromPlain, values) {
		t.Errorf("Expected identical state from both exports, got %v and %v", fromPlain, fromPacked)
	}
}

func testPersistFailures(t *testing.T, s store.IStore, dir string) {
	defer destroy(t, s)
	ctx := context.Background()

	missing := s.Persist(ctx, store.PersistRequest{Action: store.ActionImport, FilePath: "missing.json"})
	expectCode(t, missing.Result, store.RetCIOFailure)

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{ this is not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	bad := s.Persist(ctx, store.PersistRequest{Action: store.ActionImport, FilePath: "corrupt.json"})
	expectCode(t, bad.Result, store.RetCDataFormat)
	if bad.Error == "" {
		t.Errorf("Expected a human readable failure message")
	}
}

func testNumbersSurviveExport(t *testing.T, s store.IStore, dir string) {
	defer destroy(t, s)
	ctx := context.Background()

	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	inputs := map[string]any{
		"big":    int64(9007199254740993),
		"small":  42,
		"whole":  3.0,
		"ratio":  0.25,
		"list":   []int{1, 2},
		"struct": point{X: 1, Y: -2},
	}
	want := map[string]any{
		"big":    int64(9007199254740993),
		"small":  int64(42),
		"whole":  int64(3),
		"ratio":  0.25,
		"list":   []any{int64(1), int64(2)},
		"struct": map[string]any{"x": int64(1), "y": int64(-2)},
	}
	for k, v := range inputs {
		mustStore(t, s, k, v, store.StoreOptions{Namespace: "n", Metadata: map[string]any{"rev": 7}})
	}

	state := func() map[string]any {
		got := make(map[string]any)
		for k := range inputs {
			res := s.Retrieve(k, "n")
			if !res.Found() {
				t.Fatalf("Expected n/%s to be found, got %q", k, res.Outcome)
			}
			if !reflect.DeepEqual(res.Metadata, map[string]any{"rev": int64(7)}) {
				t.Errorf("Unexpected metadata for n/%s: %#v", k, res.Metadata)
			}
			got[k] = res.Value
		}
		return got
	}

	before := state()
	if !reflect.DeepEqual(before, want) {
		t.Errorf("Expected stored values %#v, got %#v", want, before)
	}

	exp := s.Persist(ctx, store.PersistRequest{Action: store.ActionExport, FilePath: "numbers.json", Namespace: "n"})
	if !exp.Success {
		t.Fatalf("Export failed: %v", exp.Err())
	}
	s.Clear("n")
	imp := s.Persist(ctx, store.PersistRequest{Action: store.ActionImport, FilePath: "numbers.json"})
	if !imp.Success || imp.Imported != len(inputs) {
		t.Fatalf("Import failed: %d imported (%v)", imp.Imported, imp.Err())
	}

	if after := state(); !reflect.DeepEqual(after, before) {
		t.Errorf("Expected values identical to the exported ones, got %#v, want %#v", after, before)
	}
	if _, err := os.Stat(filepath.Join(dir, "numbers.json")); err != nil {
		t.Errorf("Expected the export below the export directory: %v", err)
	}
}

func testPathsStayInExportDir(t *testing.T, s store.IStore, dir string) {
	defer destroy(t, s)
	ctx := context.Background()
	mustStore(t, s, "k", "v", store.StoreOptions{})

	outside := t.TempDir()
	victim := filepath.Join(outside, "victim", "file.txt")
	existing := filepath.Join(outside, "existing.json")
	if err := os.WriteFile(existing, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	escape, err := filepath.Rel(dir, filepath.Join(outside, "escape.json"))
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{victim, escape, "../escape.json", "sub/../../escape.json"} {
		exp := s.Persist(ctx, store.PersistRequest{Action: store.ActionExport, FilePath: path})
		expectCode(t, exp.Result, store.RetCInvalidArgument)
		imp := s.Persist(ctx, store.PersistRequest{Action: store.ActionImport, FilePath: path})
		expectCode(t, imp.Result, store.RetCInvalidArgument)
	}
	imp := s.Persist(ctx, store.PersistRequest{Action: store.ActionImport, FilePath: existing})
	expectCode(t, imp.Result, store.RetCInvalidArgument)

	if _, err := os.Stat(filepath.Dir(victim)); !os.IsNotExist(err) {
		t.Errorf("Expected no directory to be created outside the export directory, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "escape.json")); !os.IsNotExist(err) {
		t.Errorf("Expected no file to be written outside the export directory, got %v", err)
	}

	// absolute and nested paths below the export directory are fine
	nested := filepath.Join(dir, "nested", "inside.json")
	if exp := s.Persist(ctx, store.PersistRequest{Action: store.ActionExport, FilePath: nested}); !exp.Success || exp.FilePath != nested {
		t.Errorf("Expected export to %s to succeed, got %s (%v)", nested, exp.FilePath, exp.Err())
	}
	if exp := s.Persist(ctx, store.PersistRequest{Action: store.ActionExport, FilePath: "nested/../flat.json"}); !exp.Success || exp.FilePath != filepath.Join(dir, "flat.json") {
		t.Errorf("Expected export to flat.json to succeed, got %s (%v)", exp.FilePath, exp.Err())
	}
}

func testStats(t *testing.T, s store.IStore) {
	defer destroy(t, s)

	empty := s.Stats()
	if !empty.Success {
		t.Fatalf("Stats failed: %v", empty.Err())
	}
	if empty.Stats.TotalEntries != 0 || empty.Stats.OldestEntry != nil || empty.Stats.NewestEntry != nil {
		t.Errorf("Expected empty stats, got %+v", empty.Stats)
	}

	mustStore(t, s, "a", "v", store.StoreOptions{Namespace: "x"})
	mustStore(t, s, "b", "v", store.StoreOptions{Namespace: "x"})
	mustStore(t, s, "c", "v", store.StoreOptions{Namespace: "y"})

	res := s.Stats()
	if res.Stats.TotalEntries != 3 {
		t.Errorf("Expected 3 entries, got %d", res.Stats.TotalEntries)
	}
	if !reflect.DeepEqual(res.Stats.Namespaces, []string{"x", "y"}) {
		t.Errorf("Expected namespaces [x y], got %v", res.Stats.Namespaces)
	}
	if res.Stats.NamespaceCounts["x"] != 2 || res.Stats.NamespaceCounts["y"] != 1 {
		t.Errorf("Unexpected namespace counts %v", res.Stats.NamespaceCounts)
	}
	if res.Stats.SizeBytes <= 0 {
		t.Errorf("Expected a positive size estimate, got %d", res.Stats.SizeBytes)
	}
	if res.Stats.OldestEntry == nil || res.Stats.NewestEntry == nil || res.Stats.NewestEntry.Before(*res.Stats.OldestEntry) {
		t.Errorf("Expected oldest <= newest, got %v and %v", res.Stats.OldestEntry, res.Stats.NewestEntry)
	}
	if res.Sweeper.OnDemandRuns < 2 {
		t.Errorf("Expected every stats call to trigger a sweep, got %d on-demand runs", res.Sweeper.OnDemandRuns)
	}
}

func testConcurrentWrites(t *testing.T, s store.IStore) {
	defer destroy(t, s)

	const writers = 32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			if res := s.Store("shared", fmt.Sprintf("value-%d", i), store.StoreOptions{Namespace: "race"}); !res.Success {
				t.Errorf("Concurrent store failed: %v", res.Err())
			}
		}(i)
	}
	wg.Wait()

	res := s.Retrieve("shared", "race")
	if !res.Found() {
		t.Fatalf("Expected the shared key to exist")
	}
	v, ok := res.Value.(string)
	if !ok || !strings.HasPrefix(v, "value-") {
		t.Fatalf("Expected one of the written values, got %v", res.Value)
	}
	var n int
	if _, err := fmt.Sscanf(v, "value-%d", &n); err != nil || n < 0 || n >= writers {
		t.Errorf("Expected one of the written values, got %s", v)
	}

	stats := s.Stats()
	if stats.Stats.NamespaceCounts["race"] != 1 {
		t.Errorf("Expected exactly one entry after concurrent writes, got %d", stats.Stats.NamespaceCounts["race"])
	}
}
