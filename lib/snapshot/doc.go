/*
Package snapshot serializes the entries of a table into a versioned JSON document
and restores them again.

A document looks like this:

	{
	  "version": "1.0",
	  "timestamp": "2025-01-01T12:00:00Z",
	  "namespace": "all",
	  "compression": false,
	  "format": "json",
	  "entries": [
	    {"key": "b", "namespace": "ns2", "value": "v", "createdAt": "2025-01-01T11:00:00Z"}
	  ],
	  "metadata": {
	    "totalEntries": 1,
	    "exportedBy": "memkv",
	    "platform": "linux/amd64",
	    "exportId": "5f0c...",
	    "checksum": "9a3e..."
	  }
	}

Compressed documents are the gzip or zstd encoding of the same bytes. Import
recognizes both by their magic bytes, so a compressed document can be imported
regardless of its file name. The checksum covers the compact encoding of the
entries array and is verified on import when present.

Export and Import only touch the table for the duration of one snapshot or one
restore call. File I/O happens in WriteFile and ReadFile without holding any
table lock.
*/
package snapshot
