// Package table implements the in-memory entry table that backs the memKV store.
// It maps a (namespace, key) pair to a single Entry holding an opaque value,
// creation timestamp, optional expiry and optional metadata.
//
// The package focuses on:
//   - Last-write-wins replacement of entries with the same (namespace, key)
//   - Lazy expiry: Get deletes an expired entry as a side effect and reports it
//   - Consistent point-in-time snapshots for statistics and export
//   - Bulk restore with expired entries skipped
//
// Key Components:
//
//   - Entry: The stored unit. ExpiresAt is derived once at insertion as
//     CreatedAt + ttl and is never recomputed. A zero ExpiresAt means the entry
//     never expires.
//
//   - Table: The owner of all entries. Data lives in an xsync.MapOf so that
//     single-key operations (Put, Get) on different keys never wait for each other.
//     Table-wide operations (snapshots, namespace deletion, sweeps, restore) take
//     an exclusive lock which single-key operations share. This gives snapshots a
//     consistent cut of the table without serializing every read and write.
//
// Expired entries may still physically exist in the table until the next Get that
// touches them or the next Sweep. Neither Get nor the snapshot consumers in this
// repository expose such entries to callers; snapshots return them so the caller
// can decide (statistics count them, exports skip them).
//
// Thread Safety:
//
//	All methods of Table are safe for concurrent use.
package table
