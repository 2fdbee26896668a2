package refdata

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// snapshot is the read-mostly view served to lookups: one map for curated
// aliases (always win) and one for learned ones.
type snapshot struct {
	curated map[string]*models.Alias
	learned map[string]*models.Alias
	issuers map[string]*models.Issuer
}

type mutation struct {
	kind      mutationKind
	alias     *models.Alias
	normalize string // for tombstone-by-key
	result    chan error
}

type mutationKind int

const (
	mutationUpsertAlias mutationKind = iota
	mutationTombstoneAlias
	mutationRebuild
)

// Cache is the in-memory alias cache the linker (C7) reads on every lookup.
// All writes funnel through a single goroutine-owned channel so readers
// never take a lock: each mutation batch publishes a fresh snapshot into an
// atomic.Pointer, and Lookup always reads the latest published snapshot.
type Cache struct {
	store   interfaces.RefDataStorage
	logger  arbor.ILogger
	current atomic.Pointer[snapshot]
	writes  chan mutation
	done    chan struct{}
}

// New creates an empty Cache. Call Load before serving reads, and Run to
// start the single-writer goroutine that drains mutations.
func New(store interfaces.RefDataStorage, logger arbor.ILogger) *Cache {
	c := &Cache{
		store:  store,
		logger: logger,
		writes: make(chan mutation, 256),
		done:   make(chan struct{}),
	}
	c.current.Store(&snapshot{
		curated: map[string]*models.Alias{},
		learned: map[string]*models.Alias{},
		issuers: map[string]*models.Issuer{},
	})
	return c
}

// Load rebuilds the snapshot from storage. Called at startup and whenever
// the writer goroutine is told to rebuild.
func (c *Cache) Load(ctx context.Context) error {
	aliases, err := c.store.AllAliases(ctx)
	if err != nil {
		return fmt.Errorf("failed to load aliases: %w", err)
	}
	issuers, err := c.store.ListIssuers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load issuers: %w", err)
	}

	next := &snapshot{
		curated: make(map[string]*models.Alias, len(aliases)),
		learned: make(map[string]*models.Alias, len(aliases)),
		issuers: make(map[string]*models.Issuer, len(issuers)),
	}
	for _, a := range aliases {
		if a.Origin == models.AliasOriginCurated {
			next.curated[a.Normalized] = a
		} else {
			next.learned[a.Normalized] = a
		}
	}
	for _, iss := range issuers {
		next.issuers[iss.ID] = iss
	}

	c.current.Store(next)
	c.logger.Info().Int("aliases", len(aliases)).Int("issuers", len(issuers)).Msg("alias cache loaded")
	return nil
}

// Run starts the single-writer goroutine. It returns when ctx is cancelled.
func (c *Cache) Run(ctx context.Context) {
	common.SafeGoWithContext(ctx, c.logger, "refdata.cache.writer", func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-c.writes:
				m.result <- c.apply(ctx, m)
			}
		}
	})
}

func (c *Cache) apply(ctx context.Context, m mutation) error {
	switch m.kind {
	case mutationUpsertAlias:
		if err := c.store.UpsertAlias(ctx, m.alias); err != nil {
			return err
		}
		return c.Load(ctx)
	case mutationTombstoneAlias:
		if err := c.store.TombstoneAlias(ctx, m.normalize); err != nil {
			return err
		}
		return c.Load(ctx)
	case mutationRebuild:
		return c.Load(ctx)
	default:
		return fmt.Errorf("unknown mutation kind %d", m.kind)
	}
}

func (c *Cache) mutate(ctx context.Context, m mutation) error {
	m.result = make(chan error, 1)
	select {
	case c.writes <- m:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-m.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lookup returns the Alias for a normalized name, preferring a curated hit
// over a learned one (§4.3: curated aliases always win).
func (c *Cache) Lookup(normalized string) (*models.Alias, bool) {
	snap := c.current.Load()
	if a, ok := snap.curated[normalized]; ok {
		return a, true
	}
	if a, ok := snap.learned[normalized]; ok {
		return a, true
	}
	return nil, false
}

// Issuer returns the cached Issuer by ID.
func (c *Cache) Issuer(id string) (*models.Issuer, bool) {
	snap := c.current.Load()
	iss, ok := snap.issuers[id]
	return iss, ok
}

// Learn records an auto-learned alias (score above the linker's
// auto-learn threshold, §4.3) and blocks until the cache has been rebuilt
// with it visible.
func (c *Cache) Learn(ctx context.Context, normalized, issuerID string, score float64) error {
	return c.mutate(ctx, mutation{
		kind: mutationUpsertAlias,
		alias: &models.Alias{
			Normalized: normalized,
			IssuerID:   issuerID,
			Origin:     models.AliasOriginLearned,
			Score:      score,
			CreatedAt:  time.Now(),
		},
	})
}

// Tombstone retracts a previously learned alias.
func (c *Cache) Tombstone(ctx context.Context, normalized string) error {
	return c.mutate(ctx, mutation{kind: mutationTombstoneAlias, normalize: normalized})
}

// Rebuild forces a full reload from storage, e.g. after the loader seeds
// new curated aliases.
func (c *Cache) Rebuild(ctx context.Context) error {
	return c.mutate(ctx, mutation{kind: mutationRebuild})
}
