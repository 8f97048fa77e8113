// Package testing provides a standardised conformance suite for implementations
// of the store.IStore interface.
//
// The suite covers the round trip of store and retrieve, namespace isolation of
// clear, lazy and periodic expiry, export and import (plain and compressed) with
// exact numbers, confinement of persist paths to the export directory, the
// structured failure results and last-write-wins under concurrent writers.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(exportDir string) store.IStore {
//		return NewMyStore(exportDir)
//	}
//
//	// Running the standard test suite
//	storetesting.RunIStoreTests(t, "MyStore", factory)
package testing
