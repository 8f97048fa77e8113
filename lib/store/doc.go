// Package store defines the caller-facing contract of the memory store: the IStore
// interface, the result shapes of its operations and the unified error handling.
//
// The package focuses on:
//   - A unified interface (IStore) that is implemented both by the local store and
//     by the RPC client, so callers do not care where the entries live
//   - Explicit results instead of thrown errors
//
// Key Components:
//
//   - IStore Interface: store, retrieve, persist, clear, stats and destroy. Every
//     operation returns a result embedding Result, which reports success or
//     failure, a RetCode and a timestamp. Absence of an entry is a normal outcome
//     of Retrieve (OutcomeNotFound / OutcomeExpired), never a failure.
//
//   - Error System: Error wraps a RetCode, a human-readable message and the
//     underlying cause. The return codes form the error taxonomy of the store:
//     InvalidArgument, NotFound, Expired, IOFailure and DataFormat, plus
//     InternalError for everything unexpected.
//
// Implementations:
//
//	- Local Store (lstore): owns the entry table, the expiry scheduler, the usage
//	  accountant and the snapshot codec of one process.
//	  Available in the "github.com/ValentinKolb/memKV/lib/store/lstore" package.
//
//	- RPC Client: forwards every operation to a memkv server.
//	  Available in the "github.com/ValentinKolb/memKV/rpc/client" package.
package store
