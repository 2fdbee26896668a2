package ceg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/models"
)

type fakeEventStore struct {
	events map[string]*models.Event
	edges  map[string]*models.CausalEdge // keyed by cause+"->"+effect
	byID   map[string]*models.CausalEdge
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		events: map[string]*models.Event{},
		edges:  map[string]*models.CausalEdge{},
		byID:   map[string]*models.CausalEdge{},
	}
}

func (f *fakeEventStore) SaveEvent(ctx context.Context, e *models.Event) error {
	f.events[e.ID] = e
	return nil
}
func (f *fakeEventStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, &common.ResourceNotFoundError{Kind: "event", ID: id}
}
func (f *fakeEventStore) EventsForNews(ctx context.Context, newsID string) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range f.events {
		if e.NewsID == newsID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeEventStore) EventsInWindow(ctx context.Context, from, to time.Time, excludeNewsID string) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range f.events {
		if e.NewsID == excludeNewsID {
			continue
		}
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeEventStore) UpsertCausalEdge(ctx context.Context, edge *models.CausalEdge) error {
	f.edges[edge.CauseID+"->"+edge.EffectID] = edge
	f.byID[edge.ID] = edge
	return nil
}
func (f *fakeEventStore) GetCausalEdge(ctx context.Context, causeID, effectID string) (*models.CausalEdge, error) {
	if e, ok := f.edges[causeID+"->"+effectID]; ok {
		return e, nil
	}
	return nil, &common.ResourceNotFoundError{Kind: "causal_edge", ID: causeID + "->" + effectID}
}
func (f *fakeEventStore) DeleteCausalEdge(ctx context.Context, id string) error {
	if e, ok := f.byID[id]; ok {
		delete(f.edges, e.CauseID+"->"+e.EffectID)
		delete(f.byID, id)
	}
	return nil
}
func (f *fakeEventStore) EdgesFromCause(ctx context.Context, causeID string) ([]*models.CausalEdge, error) {
	var out []*models.CausalEdge
	for _, e := range f.byID {
		if e.CauseID == causeID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeEventStore) EdgesToEffect(ctx context.Context, effectID string) ([]*models.CausalEdge, error) {
	var out []*models.CausalEdge
	for _, e := range f.byID {
		if e.EffectID == effectID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeEventStore) SaveImpactEdge(ctx context.Context, edge *models.ImpactEdge) error { return nil }
func (f *fakeEventStore) ImpactEdgesForEvent(ctx context.Context, eventID string) ([]*models.ImpactEdge, error) {
	return nil, nil
}

type fakeNewsStore struct {
	news map[string]*models.News
}

func (f *fakeNewsStore) TryInsert(ctx context.Context, news *models.News, images []models.RawImage, outboxPayload []byte) (*models.TryInsertResult, error) {
	return nil, nil
}
func (f *fakeNewsStore) GetNews(ctx context.Context, id string) (*models.News, error) {
	if n, ok := f.news[id]; ok {
		return n, nil
	}
	return nil, &common.ResourceNotFoundError{Kind: "news", ID: id}
}
func (f *fakeNewsStore) UpdateEnrichment(ctx context.Context, news *models.News, outboxType models.OutboxEventType, outboxPayload []byte) error {
	return nil
}
func (f *fakeNewsStore) ClaimUnenriched(ctx context.Context, owner string, limit int, lease time.Duration) ([]*models.News, error) {
	return nil, nil
}
func (f *fakeNewsStore) ReleaseClaim(ctx context.Context, newsID string) error { return nil }
func (f *fakeNewsStore) Search(ctx context.Context, query string, limit int) ([]*models.News, error) {
	return nil, nil
}

func testConfig() common.CEGConfig {
	return common.CEGConfig{
		LookbackWindowDays:   30,
		RetroWindowDays:      30,
		LinkThreshold:        0.3,
		ConfirmedThreshold:   0.6,
		LagPenaltyMultiplier: 0.75,
		WeightPrior:          0.4,
		WeightText:           0.3,
		WeightMarket:         0.3,
		MaxChainDepth:        3,
		RetroEligibleTypes:   []string{"sanctions", "regulatory", "default"},
	}
}

func TestLink_ForwardPassCreatesHypothesisEdge(t *testing.T) {
	events := newFakeEventStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cause := &models.Event{ID: "e1", NewsID: "n1", Type: "earnings_beat", Timestamp: base}
	effect := &models.Event{ID: "e2", NewsID: "n2", Type: "other", Timestamp: base.Add(2 * time.Hour)}
	require.NoError(t, events.SaveEvent(context.Background(), cause))
	require.NoError(t, events.SaveEvent(context.Background(), effect))

	news := &fakeNewsStore{news: map[string]*models.News{
		"n1": {ID: "n1", Title: "Рост", Text: "Прибыль выросла, привело к ралли акций"},
		"n2": {ID: "n2", Title: "Акции", Text: "Ралли акций в результате отчета"},
	}}

	engine := New(events, news, nil, testConfig(), arbor.NewLogger())
	err := engine.Link(context.Background(), "n2", []*models.Event{effect}, nil)
	require.NoError(t, err)

	edge, err := events.GetCausalEdge(context.Background(), "e1", "e2")
	require.NoError(t, err)
	assert.Equal(t, models.CausalKindHypothesis, edge.Kind)
	assert.True(t, edge.LagMatched)
	assert.Greater(t, edge.ConfTotal, 0.0)
}

func TestLink_InternalPassOrdersByTimestamp(t *testing.T) {
	events := newFakeEventStore()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	later := &models.Event{ID: "e2", NewsID: "n1", Type: "stock_drop", Timestamp: base.Add(time.Hour)}
	earlier := &models.Event{ID: "e1", NewsID: "n1", Type: "earnings_miss", Timestamp: base}
	require.NoError(t, events.SaveEvent(context.Background(), earlier))
	require.NoError(t, events.SaveEvent(context.Background(), later))

	news := &fakeNewsStore{news: map[string]*models.News{
		"n1": {ID: "n1", Title: "Отчет", Text: "Компания пропустила прогноз, что привело к падению акций"},
	}}

	engine := New(events, news, nil, testConfig(), arbor.NewLogger())
	err := engine.Link(context.Background(), "n1", []*models.Event{later, earlier}, nil)
	require.NoError(t, err)

	_, err = events.GetCausalEdge(context.Background(), "e1", "e2")
	assert.NoError(t, err)
	_, err = events.GetCausalEdge(context.Background(), "e2", "e1")
	assert.Error(t, err)
}

func TestLink_RetroactivePassFlagsFutureEffect(t *testing.T) {
	events := newFakeEventStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cause := &models.Event{ID: "e1", NewsID: "n1", Type: "sanctions", Timestamp: base}
	effect := &models.Event{ID: "e2", NewsID: "n2", Type: "other", Timestamp: base.Add(12 * time.Hour)}
	require.NoError(t, events.SaveEvent(context.Background(), cause))
	require.NoError(t, events.SaveEvent(context.Background(), effect))

	news := &fakeNewsStore{news: map[string]*models.News{
		"n1": {ID: "n1", Title: "Санкции", Text: "Введены новые санкции, что вызвало падение рынка"},
		"n2": {ID: "n2", Title: "Рынок", Text: "Рынок упал вследствие новых ограничений"},
	}}

	engine := New(events, news, nil, testConfig(), arbor.NewLogger())
	err := engine.Link(context.Background(), "n1", []*models.Event{cause}, nil)
	require.NoError(t, err)

	edge, err := events.GetCausalEdge(context.Background(), "e1", "e2")
	require.NoError(t, err)
	assert.True(t, edge.Retroactive)
	assert.Equal(t, models.CausalKindRetro, edge.Kind)
}

func TestLink_BelowThresholdDeletesExistingEdge(t *testing.T) {
	events := newFakeEventStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cause := &models.Event{ID: "e1", NewsID: "n1", Type: "earnings_beat", Timestamp: base}
	effect := &models.Event{ID: "e2", NewsID: "n2", Type: "other", Timestamp: base.Add(30 * 24 * time.Hour)}
	require.NoError(t, events.SaveEvent(context.Background(), cause))
	require.NoError(t, events.SaveEvent(context.Background(), effect))
	require.NoError(t, events.UpsertCausalEdge(context.Background(), &models.CausalEdge{
		ID: "stale", CauseID: "e1", EffectID: "e2", ConfTotal: 0.5,
	}))

	news := &fakeNewsStore{news: map[string]*models.News{
		"n1": {ID: "n1", Title: "x", Text: "no connector here at all"},
		"n2": {ID: "n2", Title: "y", Text: "unrelated text"},
	}}

	engine := New(events, news, nil, testConfig(), arbor.NewLogger())
	err := engine.Link(context.Background(), "n2", []*models.Event{effect}, nil)
	require.NoError(t, err)

	_, err = events.GetCausalEdge(context.Background(), "e1", "e2")
	assert.Error(t, err)
}

func TestChains_WalksMultiHopRespectingMonotonicity(t *testing.T) {
	events := newFakeEventStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e1 := &models.Event{ID: "e1", NewsID: "n1", Type: "sanctions", Timestamp: base}
	e2 := &models.Event{ID: "e2", NewsID: "n2", Type: "other", Timestamp: base.Add(time.Hour)}
	e3 := &models.Event{ID: "e3", NewsID: "n3", Type: "other", Timestamp: base.Add(2 * time.Hour)}
	for _, e := range []*models.Event{e1, e2, e3} {
		require.NoError(t, events.SaveEvent(context.Background(), e))
	}
	require.NoError(t, events.UpsertCausalEdge(context.Background(), &models.CausalEdge{
		ID: "edge1", CauseID: "e1", EffectID: "e2", ConfTotal: 0.8,
	}))
	require.NoError(t, events.UpsertCausalEdge(context.Background(), &models.CausalEdge{
		ID: "edge2", CauseID: "e2", EffectID: "e3", ConfTotal: 0.5,
	}))

	engine := New(events, &fakeNewsStore{news: map[string]*models.News{}}, nil, testConfig(), arbor.NewLogger())
	chains, err := engine.Chains(context.Background(), "e1", 3, 0.3)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Len(t, chains[0].Events, 3)
	assert.Len(t, chains[0].Edges, 2)
}

func TestScorePair_UnknownCauseTypeHasNoPrior(t *testing.T) {
	engine := New(newFakeEventStore(), &fakeNewsStore{news: map[string]*models.News{}}, nil, testConfig(), arbor.NewLogger())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cause := &models.Event{ID: "e1", Type: "not_a_real_type", Timestamp: base}
	effect := &models.Event{ID: "e2", Type: "other", Timestamp: base.Add(time.Hour)}

	_, _, _, _, ok := engine.ScorePair(cause, effect, "", "")
	assert.False(t, ok)
}
