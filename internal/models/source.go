package models

import (
	"fmt"
	"time"
)

// SourceKind enumerates the two adapter strategies the registry knows how
// to run (internal/adapters).
type SourceKind string

const (
	SourceKindMessageChannel SourceKind = "message_channel"
	SourceKindHTML           SourceKind = "html"
)

// SourceHealth tracks the adapter's own assessment of whether it can reach
// its collaborator, separate from whether an operator has enabled it.
type SourceHealth string

const (
	SourceHealthHealthy   SourceHealth = "healthy"
	SourceHealthDegraded  SourceHealth = "degraded"
	SourceHealthUnhealthy SourceHealth = "unhealthy"
)

// Source is a configured news origin: a messaging channel or an HTML site.
type Source struct {
	ID           string       `json:"id"`
	Code         string       `json:"code"` // stable human-readable key, e.g. "tg_interfax"
	Kind         SourceKind   `json:"kind"`
	Locator      string       `json:"locator"` // channel handle or base URL
	TrustLevel   int          `json:"trust_level"`
	Enabled      bool         `json:"enabled"`
	PollInterval string       `json:"poll_interval"`
	BackfillDays int          `json:"backfill_days"`
	Config       Metadata     `json:"config"`
	Health       SourceHealth `json:"health"`
	LastError    string       `json:"last_error,omitempty"`
	RetryCount   int          `json:"retry_count"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Metadata is a JSON-serializable bag of source-specific settings, stored as
// a TEXT column the way the teacher stores CrawlConfig/Filters.
type Metadata map[string]string

// ParserState is the adapter's cursor into its source, persisted after every
// successful flush so a restart resumes where it left off.
type ParserState struct {
	SourceID       string    `json:"source_id"`
	LastExternalID string    `json:"last_external_id"`
	LastPolledAt   time.Time `json:"last_polled_at"`
}

// Validate enforces the invariants the storage layer and the poller both
// rely on before a Source is ever persisted.
func (s *Source) Validate() error {
	if s.Code == "" {
		return fmt.Errorf("source code is required")
	}
	if s.Kind != SourceKindMessageChannel && s.Kind != SourceKindHTML {
		return fmt.Errorf("invalid source kind: %s", s.Kind)
	}
	if s.Locator == "" {
		return fmt.Errorf("source locator is required")
	}
	if s.TrustLevel < 0 || s.TrustLevel > 10 {
		return fmt.Errorf("trust level must be in [0,10], got %d", s.TrustLevel)
	}
	return nil
}
