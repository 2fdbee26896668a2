package models

import "time"

// OutboxStatus is the delivery state of a graph-mutation event waiting to
// be relayed to the broker (C13).
type OutboxStatus string

const (
	OutboxPending      OutboxStatus = "pending"
	OutboxSent         OutboxStatus = "sent"
	OutboxDeadLettered OutboxStatus = "dead_lettered"
)

// OutboxEventType names the kind of change an OutboxEvent announces.
type OutboxEventType string

const (
	OutboxEventNewsIngested       OutboxEventType = "news_ingested"
	OutboxEventNewsEnriched       OutboxEventType = "news_enriched"
	OutboxEventNewsEnrichmentFail OutboxEventType = "news_enrichment_failed"
	OutboxEventCausalEdgeUpserted OutboxEventType = "causal_edge_upserted"
	OutboxEventImpactEdgeUpserted OutboxEventType = "impact_edge_upserted"
)

// OutboxEvent is a durable record of something the broker needs to learn
// about, written in the same transaction as the domain change it describes
// (§4.3 invariant 1) and relayed at-least-once by the outbox relay.
type OutboxEvent struct {
	ID            string          `json:"id"`
	Type          OutboxEventType `json:"type"`
	Payload       []byte          `json:"payload"` // JSON envelope sent verbatim to the broker
	Status        OutboxStatus    `json:"status"`
	Retries       int             `json:"retries"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	ClaimedBy     string          `json:"-"`
	ClaimedAt     *time.Time      `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
}
