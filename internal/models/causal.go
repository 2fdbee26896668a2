package models

import "time"

// CausalKind is the confidence tier a CAUSES edge is assigned to once
// scored (§4.8).
type CausalKind string

const (
	CausalKindHypothesis CausalKind = "hypothesis"
	CausalKindConfirmed  CausalKind = "confirmed"
	CausalKindRetro      CausalKind = "retroactive"
)

// CausalEdge is a scored CAUSES relationship between two events, persisted
// both in the relational store (for re-scoring) and mirrored to the graph
// store (C12).
type CausalEdge struct {
	ID           string     `json:"id"`
	CauseID      string     `json:"cause_id"`
	EffectID     string     `json:"effect_id"`
	Kind         CausalKind `json:"kind"`
	Sign         string     `json:"sign"` // "+", "-", or "±" per the matched domain prior
	ExpectedLag  string     `json:"expected_lag,omitempty"`
	ConfPrior    float64    `json:"conf_prior"`
	ConfText     float64    `json:"conf_text"`
	ConfMarket   float64    `json:"conf_market"`
	ConfTotal    float64    `json:"conf_total"`
	LagMatched   bool       `json:"lag_matched"`
	Retroactive  bool       `json:"retroactive"`
	EvidenceSet  []string   `json:"evidence_set,omitempty"` // event IDs between cause and effect that corroborate the link
	Description  string     `json:"description,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ImpactEdge is the IMPACTS relationship from an Event to the traded
// instrument it was found to move, derived from the event-study analysis
// (C11).
type ImpactEdge struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	Ticker       string    `json:"ticker"`
	AR           float64   `json:"ar"`
	CAR          float64   `json:"car"`
	VolumeRatio  float64   `json:"volume_ratio"`
	Significant  bool      `json:"significant"`
	ConfMarket   float64   `json:"conf_market"`
	CreatedAt    time.Time `json:"created_at"`
}

// Chain is an ordered sequence of causally-linked events produced by
// Engine.Chains (C10).
type Chain struct {
	Events     []Event      `json:"events"`
	Edges      []CausalEdge `json:"edges"`
	MinConf    float64      `json:"min_conf"`
}
