package graphwriter

import (
	"context"
	"fmt"

	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// Node labels and relationship types from the graph schema (§3, §6.5).
const (
	LabelEvent      = "Event"
	LabelInstrument = "Instrument"

	RelCauses  = "CAUSES"
	RelImpacts = "IMPACTS"
)

// Writer composes GraphStore merge calls into the three mutations the rest
// of the module needs: mirroring an extracted Event, a scored CAUSES edge,
// and a measured IMPACTS edge. It holds no storage of its own — every call
// is forwarded straight to the GraphStore collaborator.
type Writer struct {
	store interfaces.GraphStore
}

// New creates a Writer over any GraphStore implementation (HTTPClient in
// production, a fake in tests).
func New(store interfaces.GraphStore) *Writer {
	return &Writer{store: store}
}

// UpsertEvent mirrors one extracted Event as a graph node, keyed by its own
// id so re-processing the same News item never duplicates it.
func (w *Writer) UpsertEvent(ctx context.Context, event *models.Event) error {
	props := map[string]any{
		"news_id":    event.NewsID,
		"type":       event.Type,
		"title":      event.Title,
		"timestamp":  event.Timestamp,
		"confidence": event.Confidence,
		"is_anchor":  event.IsAnchor,
		"companies":  event.Attrs.Companies,
		"tickers":    event.Attrs.Tickers,
		"people":     event.Attrs.People,
		"markets":    event.Attrs.Markets,
	}
	if err := w.store.MergeNode(ctx, LabelEvent, event.ID, props); err != nil {
		return fmt.Errorf("graphwriter: upsert event %s: %w", event.ID, err)
	}
	return nil
}

// UpsertCausesEdge mirrors a scored CAUSES edge. Properties fully replace
// on MERGE (§4.10), so a re-score that drops conf_total below θ_link must
// delete the edge rather than write zeroed properties — callers do that via
// EventStorage.DeleteCausalEdge and never call this with a stale edge.
func (w *Writer) UpsertCausesEdge(ctx context.Context, edge *models.CausalEdge) error {
	props := map[string]any{
		"kind":           edge.Kind,
		"sign":           edge.Sign,
		"expected_lag":   edge.ExpectedLag,
		"conf_prior":     edge.ConfPrior,
		"conf_text":      edge.ConfText,
		"conf_market":    edge.ConfMarket,
		"conf_total":     edge.ConfTotal,
		"lag_matched":    edge.LagMatched,
		"is_retroactive": edge.Retroactive,
		"evidence_set":   edge.EvidenceSet,
	}
	if err := w.store.MergeEdge(ctx, LabelEvent, edge.CauseID, RelCauses, LabelEvent, edge.EffectID, props); err != nil {
		return fmt.Errorf("graphwriter: upsert causes edge %s->%s: %w", edge.CauseID, edge.EffectID, err)
	}
	return nil
}

// UpsertImpactsEdge mirrors a measured IMPACTS edge from an Event to the
// traded instrument the event-study analyser found it moved.
func (w *Writer) UpsertImpactsEdge(ctx context.Context, edge *models.ImpactEdge) error {
	props := map[string]any{
		"ar":           edge.AR,
		"car":          edge.CAR,
		"volume_ratio": edge.VolumeRatio,
		"significant":  edge.Significant,
		"conf_market":  edge.ConfMarket,
	}
	if err := w.store.MergeEdge(ctx, LabelEvent, edge.EventID, RelImpacts, LabelInstrument, edge.Ticker, props); err != nil {
		return fmt.Errorf("graphwriter: upsert impacts edge %s->%s: %w", edge.EventID, edge.Ticker, err)
	}
	return nil
}
