// Package engine implements the batch-processing core: resume-state
// loading, task selection, the rate-limited retrying dispatcher, the
// batched output writer, and the orchestrator that sequences them.
package engine

import "context"

// Record is an opaque mapping of string keys to arbitrary JSON values.
// The engine never interprets a Record's contents beyond extracting
// its ID field.
type Record = map[string]any

// FailureRecord is emitted by the dispatcher for a task whose process
// function raised a terminal error after retries were exhausted.
type FailureRecord struct {
	RecordID       string `json:"record_id"`
	ErrorMessage   string `json:"error_message"`
	OriginalRecord Record `json:"original_record"`
}

// missingIDSentinel is used for FailureRecord.RecordID when the
// original record had no extractable ID.
const missingIDSentinel = "N/A"

// ProcessFunc is the user-supplied transformation applied to every
// selected record. Returning (nil, nil) voids the record: it is
// neither a success nor a failure. Returning a non-nil error marks the
// attempt as retryable; after retries are exhausted the error is
// recorded verbatim in the failure file.
type ProcessFunc func(ctx context.Context, record Record, ectx *Context) (Record, error)

// StartupHook runs once before dispatch begins and returns the user
// extension values merged into the run Context.
type StartupHook func(ctx context.Context) (map[string]any, error)

// ShutdownHook runs once after dispatch completes (successfully,
// with errors, or on cancellation). Its error is logged and swallowed.
type ShutdownHook func(ctx context.Context, ectx *Context) error

// ProgressReporter receives live updates as the dispatcher's outcome
// loop classifies each task. The engine calls these methods from a
// single outcome-consumer goroutine, never concurrently.
type ProgressReporter interface {
	RecordSuccess()
	RecordFailure()
	RecordVoided()
	Finish()
}
