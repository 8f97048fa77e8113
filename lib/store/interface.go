package store

import (
	"context"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the caller-facing interface of a namespaced memory store.
// No method returns a Go error for caller mistakes or I/O problems: every result
// carries an explicit success flag, a return code and a timestamp instead.
// Use Result.Err to turn a failed result into an *Error.
type IStore interface {
	// Store inserts or replaces the entry for (namespace, key). An empty namespace
	// resolves to the default namespace. A zero TTL means the entry never expires,
	// a negative TTL is rejected.
	//
	// Value and metadata must be JSON encodable. The store keeps a private copy in
	// JSON form (objects as map[string]any, arrays as []any, integral numbers as
	// int64, other numbers as float64), so later changes to the caller's value are
	// not visible in the store.
	Store(key string, value any, opts StoreOptions) StoreResult
	// Retrieve returns the entry for (namespace, key). Missing and expired entries
	// are reported as distinct outcomes, not as failures.
	// The returned value and metadata are shared with the store and must be
	// treated as read-only.
	Retrieve(key, namespace string) RetrieveResult
	// Persist exports entries to a file or imports them from one.
	// The context bounds the file I/O. File paths are resolved below the store's
	// export directory and must not leave it.
	Persist(ctx context.Context, req PersistRequest) PersistResult
	// Clear removes every entry of the namespace. The namespace is required.
	Clear(namespace string) ClearResult
	// Stats returns usage statistics. It triggers a sweep of expired entries first.
	Stats() StatsResult
	// Destroy stops background work and releases all entries (or the connection
	// for remote stores). The store must not be used afterward.
	Destroy() error
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the underlying cause.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message.
	Cause error   // The underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Msg {
		return fmt.Sprintf("StoreError (code %s): %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code that wraps cause.
func WrapError(code RetCode, cause error, msg string) *Error {
	return &Error{
		Code:  code,
		Msg:   msg,
		Cause: cause,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess         RetCode = iota // 0: Command executed successfully.
	RetCInternalError                  // 1: Command failed due to an internal error.
	RetCInvalidArgument                // 2: A required argument is missing or malformed.
	RetCNotFound                       // 3: The requested entry does not exist.
	RetCExpired                        // 4: The requested entry exists but is expired.
	RetCIOFailure                      // 5: Reading or writing a snapshot file failed.
	RetCDataFormat                     // 6: A snapshot could not be decompressed or decoded.
)

// String returns the name of the return code
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidArgument:
		return "InvalidArgument"
	case RetCNotFound:
		return "NotFound"
	case RetCExpired:
		return "Expired"
	case RetCIOFailure:
		return "IOFailure"
	case RetCDataFormat:
		return "DataFormat"
	default:
		return "Unknown"
	}
}
