package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/eventextractor"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/linker"
	"github.com/cegradar/cegradar/internal/models"
	"github.com/cegradar/cegradar/internal/refdata"
)

// --- fakes -------------------------------------------------------------

type fakeSourceStore struct {
	sources map[string]*models.Source
}

func (f *fakeSourceStore) SaveSource(ctx context.Context, s *models.Source) error { return nil }
func (f *fakeSourceStore) GetSource(ctx context.Context, id string) (*models.Source, error) {
	if s, ok := f.sources[id]; ok {
		return s, nil
	}
	return nil, &common.ResourceNotFoundError{Kind: "source", ID: id}
}
func (f *fakeSourceStore) GetSourceByCode(ctx context.Context, code string) (*models.Source, error) {
	return nil, &common.ResourceNotFoundError{Kind: "source", ID: code}
}
func (f *fakeSourceStore) ListSources(ctx context.Context) ([]*models.Source, error)        { return nil, nil }
func (f *fakeSourceStore) ListEnabledSources(ctx context.Context) ([]*models.Source, error)  { return nil, nil }
func (f *fakeSourceStore) MarkHealth(ctx context.Context, id string, h models.SourceHealth, lastErr string) error {
	return nil
}
func (f *fakeSourceStore) GetParserState(ctx context.Context, sourceID string) (*models.ParserState, error) {
	return nil, &common.ResourceNotFoundError{Kind: "parser_state", ID: sourceID}
}
func (f *fakeSourceStore) UpdateParserState(ctx context.Context, state *models.ParserState) error {
	return nil
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
	f.news[news.ID] = news
	return nil
}
func (f *fakeNewsStore) ClaimUnenriched(ctx context.Context, owner string, limit int, leaseDuration time.Duration) ([]*models.News, error) {
	return nil, nil
}
func (f *fakeNewsStore) ReleaseClaim(ctx context.Context, newsID string) error { return nil }
func (f *fakeNewsStore) Search(ctx context.Context, query string, limit int) ([]*models.News, error) {
	return nil, nil
}

type fakeEntityStore struct {
	byNews map[string][]models.Entity
}

func (f *fakeEntityStore) SaveEntities(ctx context.Context, newsID string, entities []models.Entity) error {
	if f.byNews == nil {
		f.byNews = map[string][]models.Entity{}
	}
	f.byNews[newsID] = entities
	return nil
}
func (f *fakeEntityStore) EntitiesForNews(ctx context.Context, newsID string) ([]models.Entity, error) {
	return f.byNews[newsID], nil
}

type fakeTopicStore struct {
	byNews map[string][]models.Topic
}

func (f *fakeTopicStore) SaveTopics(ctx context.Context, newsID string, topics []models.Topic) error {
	if f.byNews == nil {
		f.byNews = map[string][]models.Topic{}
	}
	f.byNews[newsID] = topics
	return nil
}
func (f *fakeTopicStore) TopicsForNews(ctx context.Context, newsID string) ([]models.Topic, error) {
	return f.byNews[newsID], nil
}

type fakeRefDataStore struct {
	issuers       map[string]*models.Issuer
	aliases       map[string]*models.Alias
	linkedByNews  map[string][]*models.LinkedCompany
}

func newFakeRefDataStore() *fakeRefDataStore {
	return &fakeRefDataStore{
		issuers: map[string]*models.Issuer{},
		aliases: map[string]*models.Alias{},
	}
}
func (f *fakeRefDataStore) SaveIssuer(ctx context.Context, issuer *models.Issuer) error {
	f.issuers[issuer.ID] = issuer
	return nil
}
func (f *fakeRefDataStore) GetIssuer(ctx context.Context, id string) (*models.Issuer, error) {
	if i, ok := f.issuers[id]; ok {
		return i, nil
	}
	return nil, &common.ResourceNotFoundError{Kind: "issuer", ID: id}
}
func (f *fakeRefDataStore) SearchIssuers(ctx context.Context, query string) ([]*models.Issuer, error) {
	return nil, nil
}
func (f *fakeRefDataStore) ListIssuers(ctx context.Context) ([]*models.Issuer, error) {
	out := make([]*models.Issuer, 0, len(f.issuers))
	for _, i := range f.issuers {
		out = append(out, i)
	}
	return out, nil
}
func (f *fakeRefDataStore) LookupAlias(ctx context.Context, normalized string) (*models.Alias, error) {
	if a, ok := f.aliases[normalized]; ok {
		return a, nil
	}
	return nil, &common.ResourceNotFoundError{Kind: "alias", ID: normalized}
}
func (f *fakeRefDataStore) UpsertAlias(ctx context.Context, alias *models.Alias) error {
	f.aliases[alias.Normalized] = alias
	return nil
}
func (f *fakeRefDataStore) TombstoneAlias(ctx context.Context, normalized string) error {
	delete(f.aliases, normalized)
	return nil
}
func (f *fakeRefDataStore) AllAliases(ctx context.Context) ([]*models.Alias, error) {
	out := make([]*models.Alias, 0, len(f.aliases))
	for _, a := range f.aliases {
		out = append(out, a)
	}
	return out, nil
}
func (f *fakeRefDataStore) SaveLinkedCompany(ctx context.Context, link *models.LinkedCompany) error {
	if f.linkedByNews == nil {
		f.linkedByNews = map[string][]*models.LinkedCompany{}
	}
	f.linkedByNews[link.NewsID] = append(f.linkedByNews[link.NewsID], link)
	return nil
}
func (f *fakeRefDataStore) LinkedCompaniesForNews(ctx context.Context, newsID string) ([]*models.LinkedCompany, error) {
	return f.linkedByNews[newsID], nil
}

type fakeEventStorage struct {
	events map[string]*models.Event
	edges  []*models.CausalEdge
	impacts []*models.ImpactEdge
}

func newFakeEventStorage() *fakeEventStorage {
	return &fakeEventStorage{events: map[string]*models.Event{}}
}
func (f *fakeEventStorage) SaveEvent(ctx context.Context, e *models.Event) error {
	f.events[e.ID] = e
	return nil
}
func (f *fakeEventStorage) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, &common.ResourceNotFoundError{Kind: "event", ID: id}
}
func (f *fakeEventStorage) EventsForNews(ctx context.Context, newsID string) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range f.events {
		if e.NewsID == newsID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeEventStorage) EventsInWindow(ctx context.Context, from, to time.Time, excludeNewsID string) ([]*models.Event, error) {
	return nil, nil
}
func (f *fakeEventStorage) UpsertCausalEdge(ctx context.Context, edge *models.CausalEdge) error {
	f.edges = append(f.edges, edge)
	return nil
}
func (f *fakeEventStorage) GetCausalEdge(ctx context.Context, causeID, effectID string) (*models.CausalEdge, error) {
	return nil, &common.ResourceNotFoundError{Kind: "causal_edge", ID: causeID + "->" + effectID}
}
func (f *fakeEventStorage) DeleteCausalEdge(ctx context.Context, id string) error { return nil }
func (f *fakeEventStorage) EdgesFromCause(ctx context.Context, causeID string) ([]*models.CausalEdge, error) {
	return nil, nil
}
func (f *fakeEventStorage) EdgesToEffect(ctx context.Context, effectID string) ([]*models.CausalEdge, error) {
	return nil, nil
}
func (f *fakeEventStorage) SaveImpactEdge(ctx context.Context, edge *models.ImpactEdge) error {
	f.impacts = append(f.impacts, edge)
	return nil
}
func (f *fakeEventStorage) ImpactEdgesForEvent(ctx context.Context, eventID string) ([]*models.ImpactEdge, error) {
	return nil, nil
}

type fakeOutbox struct {
	enqueued []*models.OutboxEvent
}

func (f *fakeOutbox) Enqueue(ctx context.Context, event *models.OutboxEvent) error {
	f.enqueued = append(f.enqueued, event)
	return nil
}
func (f *fakeOutbox) ClaimPending(ctx context.Context, owner string, limit int) ([]*models.OutboxEvent, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkSent(ctx context.Context, id string) error                            { return nil }
func (f *fakeOutbox) MarkRetry(ctx context.Context, id string, nextAttemptAt time.Time) error  { return nil }
func (f *fakeOutbox) MarkDeadLettered(ctx context.Context, id string) error                    { return nil }
func (f *fakeOutbox) PurgeSentBefore(ctx context.Context, cutoff time.Time) (int, error)       { return 0, nil }

type fakeExtractor struct {
	payloads []interfaces.ExtractedEventPayload
	err      error
	calls    int
}

func (f *fakeExtractor) Extract(ctx context.Context, title, text string) ([]interfaces.ExtractedEventPayload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payloads, nil
}

// --- test setup ----------------------------------------------------------

func testPipeline(t *testing.T, extractor *fakeExtractor) (*Pipeline, *fakeNewsStore, *fakeOutbox, *fakeRefDataStore) {
	t.Helper()
	logger := arbor.NewLogger()

	issuer := &models.Issuer{ID: "iss-1", LegalName: "Sberbank", Ticker: "SBER", Traded: true, EquityMarket: true}
	refStore := newFakeRefDataStore()
	refStore.issuers[issuer.ID] = issuer
	refStore.aliases["sberbank"] = &models.Alias{Normalized: "sberbank", IssuerID: issuer.ID, Origin: models.AliasOriginCurated}

	cache := refdata.New(refStore, logger)
	require.NoError(t, cache.Load(context.Background()))

	lk := linker.New(cache, refStore, 50, logger)
	ee := eventextractor.New(common.CEGConfig{MaxEventsPerNews: 5, AnchorEligibleTypes: []string{}})

	sourceStore := &fakeSourceStore{sources: map[string]*models.Source{
		"src-1": {ID: "src-1", Code: "tg_test", TrustLevel: 8, Enabled: true},
	}}
	newsStore := &fakeNewsStore{news: map[string]*models.News{}}
	entityStore := &fakeEntityStore{}
	topicStore := &fakeTopicStore{}
	eventStore := newFakeEventStorage()
	outbox := &fakeOutbox{}

	p := New(Collaborators{
		Sources:        sourceStore,
		News:           newsStore,
		Entities:       entityStore,
		Topics:         topicStore,
		RefData:        refStore,
		Events:         eventStore,
		Outbox:         outbox,
		Extractor:      extractor,
		Linker:         lk,
		EventExtractor: ee,
	}, common.EnrichmentConfig{ExtractorRetries: 3, ExtractorTimeout: "5s"}, common.NewMetrics(), logger)

	return p, newsStore, outbox, refStore
}

func testNews() *models.News {
	return &models.News{
		ID:          "news-1",
		SourceID:    "src-1",
		Title:       "Sberbank announces new dividend policy",
		Text:        "Sberbank said today it will increase its dividend payout.",
		PublishedAt: time.Now(),
	}
}

// --- tests -----------------------------------------------------------------

func TestProcessOne_HappyPathMarksNewsDoneAndPersistsEnrichment(t *testing.T) {
	extractor := &fakeExtractor{payloads: []interfaces.ExtractedEventPayload{
		{Type: "dividend", Companies: []string{"Sberbank"}, Tickers: []string{"SBER"}},
	}}
	p, newsStore, outbox, refStore := testPipeline(t, extractor)
	news := testNews()

	err := p.ProcessOne(context.Background(), news)
	require.NoError(t, err)

	stored := newsStore.news[news.ID]
	require.NotNil(t, stored)
	assert.Equal(t, models.EnrichmentDone, stored.EnrichmentStatus)
	assert.Equal(t, int64(1), p.metrics.Snapshot().EnrichmentSucceeded)

	linked := refStore.linkedByNews[news.ID]
	require.Len(t, linked, 1)
	assert.Equal(t, "iss-1", linked[0].IssuerID)
	assert.True(t, linked[0].IsPrimary)

	_ = outbox // outbox only receives rows for causal/impact edges, none here (no engine wired)
}

func TestProcessOne_ExtractorExhaustsRetriesMarksNewsFailed(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("upstream unavailable")}
	p, newsStore, _, _ := testPipeline(t, extractor)
	news := testNews()

	err := p.ProcessOne(context.Background(), news)
	require.NoError(t, err)

	stored := newsStore.news[news.ID]
	require.NotNil(t, stored)
	assert.Equal(t, models.EnrichmentFailed, stored.EnrichmentStatus)
	assert.Equal(t, 3, extractor.calls)
	assert.Equal(t, int64(1), p.metrics.Snapshot().EnrichmentFailed)
}

func TestProcessOne_UnknownSourceFailsImmediately(t *testing.T) {
	extractor := &fakeExtractor{}
	p, _, _, _ := testPipeline(t, extractor)
	news := testNews()
	news.SourceID = "missing"

	err := p.ProcessOne(context.Background(), news)
	assert.Error(t, err)
	assert.Equal(t, 0, extractor.calls)
}

func TestBuildEntities_RoutesByKind(t *testing.T) {
	payload := interfaces.ExtractedEventPayload{
		Companies: []string{"Acme Corp"},
		People:    []string{"Jane Doe"},
		Metrics:   []string{"revenue +10%"},
	}
	entities := buildEntities(payload)
	require.Len(t, entities, 3)
	assert.Equal(t, models.EntityOrg, entities[0].Kind)
	assert.Equal(t, models.EntityPerson, entities[1].Kind)
	assert.Equal(t, models.EntityMetric, entities[2].Kind)
}

func TestTopicsFor_CapsAtThreeRanked(t *testing.T) {
	topics := topicsFor("news-1", []string{"a", "b", "c", "d"})
	require.Len(t, topics, 3)
	assert.Equal(t, 0, topics[0].Rank)
	assert.Equal(t, "c", topics[2].Tag)
}
