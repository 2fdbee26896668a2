package interfaces

import (
	"context"
	"time"
)

// GraphStore is the external graph database this module writes to (§6.5).
// The database itself is out of scope; only this client contract is ours.
type GraphStore interface {
	MergeNode(ctx context.Context, label, id string, props map[string]any) error
	MergeEdge(ctx context.Context, fromLabel, fromID, edgeType, toLabel, toID string, props map[string]any) error
}

// SecuritiesMasterClient is the contract of the external reference-data API
// (§6.3). Nothing implements or calls it: on an alias-cache miss the linker
// (C7) searches the local issuers table through RefDataStorage.SearchIssuers.
type SecuritiesMasterClient interface {
	Search(ctx context.Context, query string) ([]SecuritiesMasterCandidate, error)
}

// SecuritiesMasterCandidate is one search hit, carrying exactly the fields
// the linker's scoring cascade needs.
type SecuritiesMasterCandidate struct {
	IssuerID     string
	LegalName    string
	Ticker       string
	ISIN         string
	Traded       bool
	EquityMarket bool
	PrimaryBoard bool
}

// PriceCandle is one OHLCV observation for a traded instrument.
type PriceCandle struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceAPIClient fetches historical OHLCV data for the event-study analyser
// (C11), grounded on the teacher's EODHD client shape (§6.4).
type PriceAPIClient interface {
	GetDailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]PriceCandle, error)
}

// ExtractedEventPayload is what an Extractor returns for one detected
// event; the pipeline stays agnostic to whether this came from a remote LLM
// or the deterministic local fallback (§6.2).
type ExtractedEventPayload struct {
	Type       string
	Title      string
	Confidence float64
	Companies  []string
	Tickers    []string
	People     []string
	Markets    []string
	Metrics    []string
}

// Extractor is the event-extraction collaborator contract. The pipeline
// treats every implementation — remote LLM-backed or local deterministic —
// identically.
type Extractor interface {
	Extract(ctx context.Context, newsTitle, newsText string) ([]ExtractedEventPayload, error)
}
