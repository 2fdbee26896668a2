package models

import "time"

// EventAttrs carries the entity mentions the extractor pulled out of the
// source news, used both for evidence-sharing checks (C10) and for display.
type EventAttrs struct {
	Companies        []string `json:"companies,omitempty"`
	Tickers          []string `json:"tickers,omitempty"`
	People           []string `json:"people,omitempty"`
	Markets          []string `json:"markets,omitempty"`
	FinancialMetrics []string `json:"financial_metrics,omitempty"`
}

// Event is a typed fact extracted from one News item (C9). A single News
// item may yield up to CEGConfig.MaxEventsPerNews events.
type Event struct {
	ID         string     `json:"id"`
	NewsID     string     `json:"news_id"`
	Type       string     `json:"type"` // one of the fixed event-type taxonomy
	Title      string     `json:"title"`
	Timestamp  time.Time  `json:"timestamp"` // News.PublishedAt unless the text states otherwise
	Confidence float64    `json:"confidence"`
	IsAnchor   bool       `json:"is_anchor"`
	Attrs      EventAttrs `json:"attrs"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SharesEntity reports whether e and other mention any of the same company
// or ticker, used by the CMNLN engine's evidence search and by the text
// marker scan's entity-overlap heuristic.
func (e Event) SharesEntity(other Event) bool {
	for _, c := range e.Attrs.Companies {
		for _, oc := range other.Attrs.Companies {
			if c == oc {
				return true
			}
		}
	}
	for _, t := range e.Attrs.Tickers {
		for _, ot := range other.Attrs.Tickers {
			if t == ot {
				return true
			}
		}
	}
	return false
}
