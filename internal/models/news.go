package models

import "time"

// EnrichmentStatus tracks a News item's progress through the enrichment
// pipeline (C6).
type EnrichmentStatus string

const (
	EnrichmentPending EnrichmentStatus = "pending"
	EnrichmentDone    EnrichmentStatus = "done"
	EnrichmentFailed  EnrichmentStatus = "failed"
)

// RawNews is what a source adapter hands to the ingestion pipeline before
// any storage-assigned identity exists.
type RawNews struct {
	SourceID     string
	ExternalID   string
	Title        string
	Text         string
	HTML         string
	PublishedAt  time.Time
	Images       []RawImage
	TrustLevel   int
}

// RawImage is an image reference discovered alongside a RawNews item, before
// it has been fetched and content-addressed by the image service (C5).
type RawImage struct {
	URL     string
	AltText string
}

// News is a persisted, deduplicated news item. ContentHash and
// (SourceID, ExternalID) are both unique constraints (§3 invariant 1).
type News struct {
	ID               string           `json:"id"`
	SourceID         string           `json:"source_id"`
	ExternalID       string           `json:"external_id"`
	Title            string           `json:"title"`
	Text             string           `json:"text"`
	ContentHash      string           `json:"content_hash"`
	PublishedAt      time.Time        `json:"published_at"`
	IngestedAt       time.Time        `json:"ingested_at"`
	// PendingImages are the raw image references staged at ingestion time,
	// consumed by the image service (C5) and cleared once each has been
	// fetched, digested, and linked as a models.Image.
	PendingImages    []RawImage       `json:"pending_images,omitempty"`
	IsAd             bool             `json:"is_ad"`
	AntispamScore    float64          `json:"antispam_score"`
	AntispamReasons  []string         `json:"antispam_reasons,omitempty"`
	EnrichmentStatus EnrichmentStatus `json:"enrichment_status"`
	ClaimedBy        string           `json:"-"`
	ClaimedAt        *time.Time       `json:"-"`

	// Enrichment outputs (C6-C9), nil until enrichment completes.
	Sector      string   `json:"sector,omitempty"`
	Country     string   `json:"country,omitempty"`
	NewsType    string   `json:"news_type,omitempty"`
	NewsSubtype string   `json:"news_subtype,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TryInsertResult is returned by NewsStorage.TryInsert, distinguishing a
// fresh insert from the two duplicate-detection paths.
type TryInsertResult struct {
	News      *News
	Duplicate bool
}
