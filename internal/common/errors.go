// Package common provides shared configuration, logging, and error types used
// across the ingestion and enrichment pipeline.
package common

import "fmt"

// ConfigError indicates a malformed or missing configuration value. The
// process exits before any component is wired when this is returned.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransientIOError wraps a failure that is expected to clear on retry: a
// timed-out HTTP call, a locked SQLite file, a momentarily unreachable
// broker. Callers should back off and try again rather than dropping the
// unit of work.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient io error during %s: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

// ResourceNotFoundError indicates the referenced entity (news item, source,
// event) does not exist in storage.
type ResourceNotFoundError struct {
	Kind string
	ID   string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// DataValidationError indicates the payload failed structural validation
// before it ever reached storage (bad RawNews, malformed SourceConfig).
type DataValidationError struct {
	Field  string
	Reason string
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// DuplicateKind discriminates which uniqueness constraint a DuplicateError
// tripped, since the two cases call for different handling upstream.
type DuplicateKind int

const (
	DuplicateOnHash DuplicateKind = iota
	DuplicateOnExternalID
)

func (k DuplicateKind) String() string {
	switch k {
	case DuplicateOnHash:
		return "duplicate_on_hash"
	case DuplicateOnExternalID:
		return "duplicate_on_external_id"
	default:
		return "duplicate_unknown"
	}
}

// DuplicateError indicates a news item already exists under the unique
// constraint named by Kind. Not a pipeline failure: the caller treats this
// as "already ingested" and moves on.
type DuplicateError struct {
	Kind       DuplicateKind
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: existing id %s", e.Kind, e.ExistingID)
}

// DownstreamFailureError wraps a failure from an external collaborator this
// module does not own: the graph store, the broker, the price API, the
// extractor. These are logged and retried per the caller's own policy; they
// never panic the process.
type DownstreamFailureError struct {
	Collaborator string
	Err          error
}

func (e *DownstreamFailureError) Error() string {
	return fmt.Sprintf("downstream failure from %s: %v", e.Collaborator, e.Err)
}

func (e *DownstreamFailureError) Unwrap() error { return e.Err }

// UnauthorizedError indicates a source or external collaborator rejected
// our credentials. Adapters mark the owning source Unhealthy on this error.
type UnauthorizedError struct {
	Collaborator string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized against %s", e.Collaborator)
}
