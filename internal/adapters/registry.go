// Package adapters translates external news origins into models.RawNews,
// via two strategies (message channels, HTML pages) registered by
// models.SourceKind (C3, §4.1).
package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/cegradar/cegradar/internal/models"
)

// Strategy is a source-kind implementation as a record of functions rather
// than an interface, so a test double can plug in just the function it
// needs without satisfying an unrelated method set.
type Strategy struct {
	// Poll fetches everything new since cursor, returning the next cursor
	// to persist to parser_state.last_external_id.
	Poll func(ctx context.Context, source *models.Source, cursor string) ([]models.RawNews, string, error)

	// Backfill streams everything within horizon of now, oldest first,
	// closing both channels when done.
	Backfill func(ctx context.Context, source *models.Source, horizon time.Duration) (<-chan models.RawNews, <-chan error)
}

// Registry maps a models.SourceKind to the Strategy that implements it.
type Registry struct {
	strategies map[models.SourceKind]Strategy
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[models.SourceKind]Strategy{}}
}

// Register associates a Strategy with a SourceKind, overwriting any
// previous registration (tests register doubles this way).
func (r *Registry) Register(kind models.SourceKind, strategy Strategy) {
	r.strategies[kind] = strategy
}

// Get returns the Strategy for a SourceKind, or an error if none is
// registered.
func (r *Registry) Get(kind models.SourceKind) (Strategy, error) {
	strategy, ok := r.strategies[kind]
	if !ok {
		return Strategy{}, fmt.Errorf("no adapter strategy registered for source kind %q", kind)
	}
	return strategy, nil
}
