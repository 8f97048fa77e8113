// Package lstore implements the local, in-memory memory store behind the
// store.IStore interface. Entries are kept in a table owned by the store and are
// lost when the process exits unless they were exported.
//
// Key Features:
//   - Namespaced entries with optional TTL
//   - Lazy expiry on read plus a periodic background sweep
//   - Export and import of JSON documents, optionally gzip or zstd compressed
//   - On-demand usage statistics
//   - Operation metrics in Prometheus text format
//
// Implementation Details:
//
//   - Composition: the store owns a table.Table. The expiry.Scheduler sweeps it in
//     the background, the usage.Accountant scans it for Stats and the
//     snapshot.Codec encodes and restores it. None of them owns the table.
//
//   - Results: every operation returns an explicit result with a return code and
//     a timestamp. Snapshot errors are mapped to RetCIOFailure and RetCDataFormat,
//     caller mistakes to RetCInvalidArgument.
//
//   - Values: Store keeps a private copy of value and metadata in JSON form
//     (table.NormalizeValue), the same form an import restores. Integral numbers
//     are held as int64, so they survive an export exactly.
//
//   - Paths: export and import paths are resolved below Options.ExportDir
//     (snapshot.ResolvePath). Paths leaving it fail with RetCInvalidArgument.
//
//   - Exports: concurrent exports of the same view to the same file are coalesced
//     with singleflight, so the document is encoded and written only once. The
//     table is locked only while the snapshot is taken, never during file I/O.
//
// Thread Safety:
//
//	All operations are thread-safe. Single-key operations on different keys run
//	concurrently; table-wide scans (stats, export, clear, sweep) briefly block them
//	to take a consistent view.
//
// Usage Example:
//
//	s := lstore.NewLocalStore(lstore.DefaultOptions())
//	defer s.Destroy()
//
//	// Store a value with 5-minute expiration
//	res := s.Store("session:123", sessionData, store.StoreOptions{Namespace: "sessions", TTL: 5 * time.Minute})
//
//	// Retrieve the value
//	got := s.Retrieve("session:123", "sessions")
//	if got.Found() {
//		use(got.Value)
//	}
package lstore
