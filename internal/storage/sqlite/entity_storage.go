package sqlite

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// EntityStorage implements interfaces.EntityStorage for SQLite.
type EntityStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewEntityStorage creates a new EntityStorage instance.
func NewEntityStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.EntityStorage {
	return &EntityStorage{db: db, logger: logger}
}

// SaveEntities replaces every entity for a News item, mirroring
// TopicStorage.SaveTopics: the extractor re-derives the full mention set
// each enrichment attempt rather than appending to a prior partial run.
func (s *EntityStorage) SaveEntities(ctx context.Context, newsID string, entities []models.Entity) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin entities transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE news_id = ?`, newsID); err != nil {
		return fmt.Errorf("failed to clear entities: %w", err)
	}

	for _, entity := range entities {
		if entity.ID == "" {
			entity.ID = common.NewID("ent")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities (id, news_id, kind, text, value, rank) VALUES (?, ?, ?, ?, ?, ?)`,
			entity.ID, newsID, string(entity.Kind), entity.Text, entity.Value, entity.Rank); err != nil {
			return fmt.Errorf("failed to save entity: %w", err)
		}
	}

	return tx.Commit()
}

func (s *EntityStorage) EntitiesForNews(ctx context.Context, newsID string) ([]models.Entity, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT id, news_id, kind, text, value, rank FROM entities WHERE news_id = ? ORDER BY rank ASC`, newsID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		var entity models.Entity
		var kind string
		if err := rows.Scan(&entity.ID, &entity.NewsID, &kind, &entity.Text, &entity.Value, &entity.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entity.Kind = models.EntityKind(kind)
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}
