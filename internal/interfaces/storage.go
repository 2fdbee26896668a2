package interfaces

import (
	"context"
	"time"

	"github.com/cegradar/cegradar/internal/models"
)

// SourceStorage persists configured news origins and their adapter cursor
// state.
type SourceStorage interface {
	SaveSource(ctx context.Context, source *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	GetSourceByCode(ctx context.Context, code string) (*models.Source, error)
	ListSources(ctx context.Context) ([]*models.Source, error)
	ListEnabledSources(ctx context.Context) ([]*models.Source, error)
	MarkHealth(ctx context.Context, id string, health models.SourceHealth, lastErr string) error

	GetParserState(ctx context.Context, sourceID string) (*models.ParserState, error)
	UpdateParserState(ctx context.Context, state *models.ParserState) error
}

// NewsStorage persists deduplicated news items and exposes the claim-based
// cursor the enrichment worker pool drains (C4).
type NewsStorage interface {
	// TryInsert writes news, its images, and an outbox event atomically.
	// Returns Duplicate=true (not an error) when content_hash or
	// (source_id, external_id) already exists.
	TryInsert(ctx context.Context, news *models.News, images []models.RawImage, outboxPayload []byte) (*models.TryInsertResult, error)

	GetNews(ctx context.Context, id string) (*models.News, error)
	// UpdateEnrichment persists the pipeline's classification output and
	// clears the claim. When outboxPayload is non-nil it is written in the
	// same transaction (e.g. NewsEnriched on success, NewsEnrichmentFailed
	// on exhausted retries), mirroring TryInsert's atomic outbox write.
	UpdateEnrichment(ctx context.Context, news *models.News, outboxType models.OutboxEventType, outboxPayload []byte) error

	// ClaimUnenriched claims up to limit pending news rows for this owner,
	// skipping rows already claimed within leaseDuration. Emulates
	// SKIP LOCKED over plain SQLite via a claimed_by/claimed_at column pair.
	ClaimUnenriched(ctx context.Context, owner string, limit int, leaseDuration time.Duration) ([]*models.News, error)
	ReleaseClaim(ctx context.Context, newsID string) error

	Search(ctx context.Context, query string, limit int) ([]*models.News, error)
}

// ImageStorage persists content-addressed images (C5).
type ImageStorage interface {
	FindByDigest(ctx context.Context, digest string) (*models.Image, error)
	SaveImage(ctx context.Context, img *models.Image) error
	LinkToNews(ctx context.Context, link models.NewsImage) error
	ImagesForNews(ctx context.Context, newsID string) ([]*models.Image, error)

	// PendingImages returns the raw image references staged on News rows
	// still awaiting fetch-and-digest, and ClearPendingImages empties that
	// staging list once the image service has processed them.
	PendingImages(ctx context.Context, newsID string) ([]models.RawImage, error)
	ClearPendingImages(ctx context.Context, newsID string) error
}

// RefDataStorage persists the curated securities master and both the
// curated and learned halves of the alias cache (C1).
type RefDataStorage interface {
	SaveIssuer(ctx context.Context, issuer *models.Issuer) error
	GetIssuer(ctx context.Context, id string) (*models.Issuer, error)
	SearchIssuers(ctx context.Context, query string) ([]*models.Issuer, error)
	ListIssuers(ctx context.Context) ([]*models.Issuer, error)

	LookupAlias(ctx context.Context, normalized string) (*models.Alias, error)
	UpsertAlias(ctx context.Context, alias *models.Alias) error
	TombstoneAlias(ctx context.Context, normalized string) error
	AllAliases(ctx context.Context) ([]*models.Alias, error)

	SaveLinkedCompany(ctx context.Context, link *models.LinkedCompany) error
	LinkedCompaniesForNews(ctx context.Context, newsID string) ([]*models.LinkedCompany, error)
}

// EntityStorage persists the per-news structured mentions the extraction
// step of the enrichment pipeline produces (C6 step 2).
type EntityStorage interface {
	SaveEntities(ctx context.Context, newsID string, entities []models.Entity) error
	EntitiesForNews(ctx context.Context, newsID string) ([]models.Entity, error)
}

// TopicStorage persists classifier secondary tags (C8).
type TopicStorage interface {
	SaveTopics(ctx context.Context, newsID string, topics []models.Topic) error
	TopicsForNews(ctx context.Context, newsID string) ([]models.Topic, error)
}

// EventStorage persists extracted events and the CEG edges scored over them
// (C9, C10).
type EventStorage interface {
	SaveEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	EventsForNews(ctx context.Context, newsID string) ([]*models.Event, error)
	// EventsInWindow returns events with Timestamp in [from, to), ordered by
	// Timestamp (the order of events with equal timestamps is not defined),
	// used by the forward/retroactive linking passes.
	EventsInWindow(ctx context.Context, from, to time.Time, excludeNewsID string) ([]*models.Event, error)

	UpsertCausalEdge(ctx context.Context, edge *models.CausalEdge) error
	GetCausalEdge(ctx context.Context, causeID, effectID string) (*models.CausalEdge, error)
	DeleteCausalEdge(ctx context.Context, id string) error
	EdgesFromCause(ctx context.Context, causeID string) ([]*models.CausalEdge, error)
	EdgesToEffect(ctx context.Context, effectID string) ([]*models.CausalEdge, error)

	SaveImpactEdge(ctx context.Context, edge *models.ImpactEdge) error
	ImpactEdgesForEvent(ctx context.Context, eventID string) ([]*models.ImpactEdge, error)
}

// OutboxStorage persists the at-least-once delivery queue for graph
// mutations (C13).
type OutboxStorage interface {
	// Enqueue inserts a standalone outbox row outside the News write
	// transaction, for mutations whose source transaction isn't the News
	// row itself (CAUSES/IMPACTS edges from C6 step 6). Unlike TryInsert's
	// and UpdateEnrichment's embedded outbox write, this isn't atomic with
	// the edge write that triggered it; both sides are idempotent MERGEs,
	// so a crash between the two only costs a re-derivable graph-mirror
	// event, never a correctness violation.
	Enqueue(ctx context.Context, event *models.OutboxEvent) error

	ClaimPending(ctx context.Context, owner string, limit int) ([]*models.OutboxEvent, error)
	MarkSent(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id string, nextAttemptAt time.Time) error
	MarkDeadLettered(ctx context.Context, id string) error
	PurgeSentBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// StorageManager composes every storage sub-interface behind one
// construction and one Close, the way the teacher's StorageManager does for
// its own Jira/Confluence/Auth/Document stores.
type StorageManager interface {
	SourceStorage() SourceStorage
	NewsStorage() NewsStorage
	ImageStorage() ImageStorage
	RefDataStorage() RefDataStorage
	EntityStorage() EntityStorage
	TopicStorage() TopicStorage
	EventStorage() EventStorage
	OutboxStorage() OutboxStorage
	DB() interface{}
	Close() error
}
