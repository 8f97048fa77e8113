package store

import (
	"time"

	"github.com/ValentinKolb/memKV/lib/expiry"
	"github.com/ValentinKolb/memKV/lib/usage"
)

// Result is embedded in every operation result
type Result struct {
	Success   bool      `json:"success"`
	Code      RetCode   `json:"code"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Err returns the failure as an *Error, or nil if the operation succeeded
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return NewError(r.Code, r.Error)
}

// Ok creates a successful result
func Ok(now time.Time) Result {
	return Result{Success: true, Code: RetCSuccess, Timestamp: now}
}

// Fail creates a failed result from err. An *Error keeps its code,
// anything else becomes RetCInternalError.
func Fail(now time.Time, err error) Result {
	r := Result{Success: false, Code: RetCInternalError, Error: err.Error(), Timestamp: now}
	if se, ok := err.(*Error); ok {
		r.Code = se.Code
		r.Error = se.Msg
		if se.Cause != nil && se.Cause.Error() != se.Msg {
			r.Error = se.Msg + ": " + se.Cause.Error()
		}
	}
	return r
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// StoreOptions are the optional arguments of IStore.Store
type StoreOptions struct {
	Namespace string
	TTL       time.Duration
	Metadata  map[string]any
}

// StoreResult acknowledges a write
type StoreResult struct {
	Result
	Key       string     `json:"key,omitempty"`
	Namespace string     `json:"namespace,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"` // nil if the entry never expires
}

// --------------------------------------------------------------------------
// Retrieve
// --------------------------------------------------------------------------

// Outcome distinguishes the possible results of a lookup
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeExpired  Outcome = "expired"
)

// RetrieveResult carries the entry of a successful lookup.
// Absence is not a failure: a missing or expired entry yields Success=true with
// Outcome (and Code) set to the not found or expired variant.
type RetrieveResult struct {
	Result
	Outcome   Outcome        `json:"outcome,omitempty"`
	Key       string         `json:"key,omitempty"`
	Namespace string         `json:"namespace,omitempty"`
	Value     any            `json:"value,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
}

// Found reports whether the lookup returned a live entry
func (r RetrieveResult) Found() bool {
	return r.Success && r.Outcome == OutcomeFound
}

// --------------------------------------------------------------------------
// Persist
// --------------------------------------------------------------------------

// PersistAction selects the direction of IStore.Persist
type PersistAction string

const (
	ActionExport PersistAction = "export"
	ActionImport PersistAction = "import"
)

// PersistRequest are the arguments of IStore.Persist
type PersistRequest struct {
	Action      PersistAction `json:"action"`
	FilePath    string        `json:"filePath,omitempty"`  // required for import
	Namespace   string        `json:"namespace,omitempty"` // export filter, empty means all namespaces
	Compression bool          `json:"compression,omitempty"`
	Format      string        `json:"format,omitempty"` // only "json" is supported
}

// PersistResult reports an export or import
type PersistResult struct {
	Result
	Action      PersistAction `json:"action,omitempty"`
	FilePath    string        `json:"filePath,omitempty"` // resolved path including a compression suffix
	Compression string        `json:"compression,omitempty"`
	ExportID    string        `json:"exportId,omitempty"`
	Exported    int           `json:"exported,omitempty"`
	Imported    int           `json:"imported,omitempty"`
	Total       int           `json:"total,omitempty"`
}

// --------------------------------------------------------------------------
// Clear and Stats
// --------------------------------------------------------------------------

// ClearResult reports how many entries were removed
type ClearResult struct {
	Result
	Namespace string `json:"namespace,omitempty"`
	Removed   int    `json:"removed"`
}

// StatsResult carries the usage statistics and the state of the background sweeper
type StatsResult struct {
	Result
	Stats   usage.Stats   `json:"stats"`
	Sweeper expiry.Report `json:"sweeper"`
}
