package lstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/memKV/lib/expiry"
	"github.com/ValentinKolb/memKV/lib/snapshot"
	"github.com/ValentinKolb/memKV/lib/store"
	"github.com/ValentinKolb/memKV/lib/table"
	"github.com/ValentinKolb/memKV/lib/usage"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

var Logger = logger.GetLogger("store")

// DefaultExportFile is the file name used by an export without a file path
const DefaultExportFile = "memory-export.json"

// Options configure a local store
type Options struct {
	SweepInterval time.Duration      // Time between background sweeps (0 = expiry.DefaultInterval)
	ExportDir     string             // Root of all export and import paths ("" = working directory)
	Compression   snapshot.Algorithm // Compressor used for compressed exports
	ExportedBy    string             // Label recorded in exported documents
	Clock         func() time.Time   // Clock for timestamps and expiry (nil = time.Now)
}

// DefaultOptions returns the default local store options
func DefaultOptions() *Options {
	return &Options{
		SweepInterval: expiry.DefaultInterval,
		ExportDir:     "",
		Compression:   snapshot.DefaultAlgorithm,
		ExportedBy:    snapshot.DefaultExportedBy,
	}
}

// --------------------------------------------------------------------------
// Core LocalStore structure
// --------------------------------------------------------------------------

// LocalStore is the in-process implementation of store.IStore.
// It owns the entry table; the expiry scheduler, usage accountant and snapshot
// codec only operate on it.
type LocalStore struct {
	opts       Options
	table      *table.Table
	scheduler  *expiry.Scheduler
	accountant *usage.Accountant
	codec      *snapshot.Codec

	exports   singleflight.Group
	metrics   *metrics.Set
	destroyed atomic.Bool
}

var _ store.IStore = (*LocalStore)(nil)

// NewLocalStore creates a local store and starts its background sweep.
// Call Destroy to stop it again.
func NewLocalStore(opts *Options) *LocalStore {
	if opts == nil {
		opts = DefaultOptions()
	}

	t := table.New(table.WithClock(opts.Clock))
	s := &LocalStore{
		opts:      *opts,
		table:     t,
		scheduler: expiry.NewScheduler(t, opts.SweepInterval),
		codec: snapshot.NewCodec(t,
			snapshot.WithAlgorithm(opts.Compression),
			snapshot.WithExportedBy(opts.ExportedBy),
		),
		metrics: metrics.NewSet(),
	}
	s.accountant = usage.NewAccountant(t, s.scheduler.SweepNow)
	s.registerGauges()

	s.scheduler.Start()
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *LocalStore) Store(key string, value any, opts store.StoreOptions) (res store.StoreResult) {
	defer func() { s.count("store", res.Result) }()
	now := s.table.Now()

	if err := s.checkAlive(); err != nil {
		return store.StoreResult{Result: store.Fail(now, err)}
	}
	if opts.TTL < 0 {
		return store.StoreResult{Result: store.Fail(now, store.NewError(store.RetCInvalidArgument, "ttl must not be negative"))}
	}

	if key == "" {
		return store.StoreResult{Result: store.Fail(now, store.WrapError(store.RetCInvalidArgument, table.ErrEmptyKey, "key must not be empty"))}
	}

	// the store keeps its own copy in JSON form, so reads before and after an
	// export and import return the same value
	value, err := table.NormalizeValue(value)
	if err != nil {
		return store.StoreResult{Result: store.Fail(now, store.WrapError(store.RetCInvalidArgument, err, "invalid value"))}
	}
	metadata, err := table.NormalizeMetadata(opts.Metadata)
	if err != nil {
		return store.StoreResult{Result: store.Fail(now, store.WrapError(store.RetCInvalidArgument, err, "invalid metadata"))}
	}

	ns := resolveNamespace(opts.Namespace)
	entry, err := s.table.Put(ns, key, value, opts.TTL, metadata)
	if err != nil {
		return store.StoreResult{Result: store.Fail(now, store.WrapError(store.RetCInternalError, err, "store failed"))}
	}

	res = store.StoreResult{
		Result:    store.Ok(entry.CreatedAt),
		Key:       entry.Key,
		Namespace: entry.Namespace,
		CreatedAt: &entry.CreatedAt,
	}
	if entry.HasExpiry() {
		res.ExpiresAt = &entry.ExpiresAt
	}
	return res
}

func (s *LocalStore) Retrieve(key, namespace string) (res store.RetrieveResult) {
	defer func() { s.count("retrieve", res.Result) }()
	now := s.table.Now()

	if err := s.checkAlive(); err != nil {
		return store.RetrieveResult{Result: store.Fail(now, err)}
	}
	if key == "" {
		return store.RetrieveResult{Result: store.Fail(now, store.NewError(store.RetCInvalidArgument, "key must not be empty"))}
	}

	ns := resolveNamespace(namespace)
	res = store.RetrieveResult{
		Result:    store.Ok(now),
		Key:       key,
		Namespace: ns,
	}

	entry, lookup := s.table.Get(ns, key)
	switch lookup {
	case table.LookupMissing:
		res.Code = store.RetCNotFound
		res.Outcome = store.OutcomeNotFound
	case table.LookupExpired:
		res.Code = store.RetCExpired
		res.Outcome = store.OutcomeExpired
	case table.LookupFound:
		res.Outcome = store.OutcomeFound
		res.Value = entry.Value
		res.Metadata = entry.Metadata
		res.CreatedAt = &entry.CreatedAt
		if entry.HasExpiry() {
			res.ExpiresAt = &entry.ExpiresAt
		}
	}
	return res
}

func (s *LocalStore) Persist(ctx context.Context, req store.PersistRequest) store.PersistResult {
	start := time.Now()
	now := s.table.Now()

	res, err := s.persist(ctx, req)
	res.Action = req.Action
	if err != nil {
		Logger.Warningf("persist (%s) failed: %v", req.Action, err)
		res.Result = store.Fail(now, err)
	} else {
		res.Result = store.Ok(now)
	}

	s.count("persist", res.Result)
	s.metrics.GetOrCreateHistogram(fmt.Sprintf(`memkv_persist_duration_seconds{action=%q}`, actionLabel(req.Action))).UpdateDuration(start)
	return res
}

func (s *LocalStore) Clear(namespace string) (res store.ClearResult) {
	defer func() { s.count("clear", res.Result) }()
	now := s.table.Now()

	if err := s.checkAlive(); err != nil {
		return store.ClearResult{Result: store.Fail(now, err)}
	}
	if namespace == "" {
		return store.ClearResult{Result: store.Fail(now, store.NewError(store.RetCInvalidArgument, "namespace is required"))}
	}

	removed := s.table.DeleteNamespace(namespace)
	Logger.Debugf("cleared namespace %s (%d entries)", namespace, removed)
	return store.ClearResult{
		Result:    store.Ok(now),
		Namespace: namespace,
		Removed:   removed,
	}
}

func (s *LocalStore) Stats() (res store.StatsResult) {
	defer func() { s.count("stats", res.Result) }()
	now := s.table.Now()

	if err := s.checkAlive(); err != nil {
		return store.StatsResult{Result: store.Fail(now, err)}
	}

	return store.StatsResult{
		Result:  store.Ok(now),
		Stats:   s.accountant.ComputeStats(),
		Sweeper: s.scheduler.Report(),
	}
}

// Destroy stops the background sweep and releases all entries.
// Calling Destroy more than once is a no-op.
func (s *LocalStore) Destroy() error {
	if !s.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	s.scheduler.Stop()
	s.table.Clear()
	Logger.Infof("store destroyed")
	return nil
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// WritePrometheus writes the store metrics in Prometheus text format
func (s *LocalStore) WritePrometheus(w io.Writer) {
	s.metrics.WritePrometheus(w)
}

// registerGauges exposes table and sweeper state as gauges
func (s *LocalStore) registerGauges() {
	s.metrics.NewGauge("memkv_entries", func() float64 {
		return float64(s.table.Len())
	})
	s.metrics.NewGauge("memkv_sweep_runs", func() float64 {
		return float64(s.scheduler.Report().Runs)
	})
	s.metrics.NewGauge("memkv_sweep_on_demand_runs", func() float64 {
		return float64(s.scheduler.Report().OnDemandRuns)
	})
	s.metrics.NewGauge("memkv_sweep_evicted", func() float64 {
		return float64(s.scheduler.Report().Evicted)
	})
}

// count increments the operation counter labeled with the result code
func (s *LocalStore) count(op string, r store.Result) {
	s.metrics.GetOrCreateCounter(fmt.Sprintf(`memkv_operations_total{op=%q,code=%q}`, op, r.Code.String())).Inc()
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

func (s *LocalStore) persist(ctx context.Context, req store.PersistRequest) (store.PersistResult, error) {
	if err := s.checkAlive(); err != nil {
		return store.PersistResult{}, err
	}
	if req.Format != "" && req.Format != snapshot.Format {
		return store.PersistResult{}, store.NewError(store.RetCInvalidArgument, fmt.Sprintf("unsupported format %q", req.Format))
	}

	switch req.Action {
	case store.ActionExport:
		return s.export(ctx, req)
	case store.ActionImport:
		return s.load(ctx, req)
	default:
		return store.PersistResult{}, store.NewError(store.RetCInvalidArgument, fmt.Sprintf("unknown persist action %q", req.Action))
	}
}

// export writes a document to the resolved path. Concurrent exports of the same
// view to the same path share one encoding and one write.
func (s *LocalStore) export(ctx context.Context, req store.PersistRequest) (store.PersistResult, error) {
	path, err := s.exportPath(req)
	if err != nil {
		return store.PersistResult{FilePath: req.FilePath}, mapSnapshotError(err, "export failed")
	}
	flight := strings.Join([]string{path, req.Namespace, fmt.Sprint(req.Compression)}, "\x00")

	v, err, shared := s.exports.Do(flight, func() (any, error) {
		out, err := s.codec.Export(req.Namespace, req.Compression)
		if err != nil {
			return nil, err
		}
		if err := snapshot.WriteFile(ctx, path, out.Data); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return store.PersistResult{FilePath: path}, mapSnapshotError(err, "export failed")
	}
	if shared {
		Logger.Debugf("export to %s shared with a concurrent request", path)
	}

	out := v.(snapshot.Export)
	Logger.Infof("exported %d entries to %s", out.Count, path)
	return store.PersistResult{
		FilePath:    path,
		Compression: string(out.Algorithm),
		ExportID:    out.ExportID,
		Exported:    out.Count,
	}, nil
}

// load reads a document and restores its entries
func (s *LocalStore) load(ctx context.Context, req store.PersistRequest) (store.PersistResult, error) {
	if req.FilePath == "" {
		return store.PersistResult{}, store.NewError(store.RetCInvalidArgument, "filePath is required for import")
	}

	path, err := snapshot.ResolvePath(s.opts.ExportDir, req.FilePath)
	if err != nil {
		return store.PersistResult{FilePath: req.FilePath}, mapSnapshotError(err, "import failed")
	}

	data, err := snapshot.ReadFile(ctx, path)
	if err != nil {
		return store.PersistResult{FilePath: path}, mapSnapshotError(err, "import failed")
	}

	algo := snapshot.Detect(data, path)
	imported, err := s.codec.Import(data, path)
	if err != nil {
		return store.PersistResult{FilePath: path}, mapSnapshotError(err, "import failed")
	}

	Logger.Infof("imported %d of %d entries from %s", imported.Imported, imported.Total, path)
	return store.PersistResult{
		FilePath:    path,
		Compression: string(algo),
		Imported:    imported.Imported,
		Total:       imported.Total,
	}, nil
}

// exportPath resolves the target file of an export below the export directory
// and appends the compression suffix if needed
func (s *LocalStore) exportPath(req store.PersistRequest) (string, error) {
	name := req.FilePath
	if name == "" {
		name = DefaultExportFile
	}
	path, err := snapshot.ResolvePath(s.opts.ExportDir, name)
	if err != nil {
		return "", err
	}
	if req.Compression {
		if suffix := s.codec.Algorithm().Suffix(); !strings.HasSuffix(path, suffix) {
			path += suffix
		}
	}
	return path, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s *LocalStore) checkAlive() error {
	if s.destroyed.Load() {
		return store.NewError(store.RetCInternalError, "store is destroyed")
	}
	return nil
}

func resolveNamespace(namespace string) string {
	if namespace == "" {
		return table.DefaultNamespace
	}
	return namespace
}

func mapSnapshotError(err error, msg string) error {
	switch {
	case errors.Is(err, snapshot.ErrPath):
		return store.WrapError(store.RetCInvalidArgument, err, msg)
	case errors.Is(err, snapshot.ErrIO):
		return store.WrapError(store.RetCIOFailure, err, msg)
	case errors.Is(err, snapshot.ErrDataFormat):
		return store.WrapError(store.RetCDataFormat, err, msg)
	default:
		return store.WrapError(store.RetCInternalError, err, msg)
	}
}

func actionLabel(a store.PersistAction) string {
	switch a {
	case store.ActionExport, store.ActionImport:
		return string(a)
	default:
		return "invalid"
	}
}
