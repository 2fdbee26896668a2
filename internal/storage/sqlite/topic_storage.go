package sqlite

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// TopicStorage implements interfaces.TopicStorage for SQLite.
type TopicStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewTopicStorage creates a new TopicStorage instance.
func NewTopicStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.TopicStorage {
	return &TopicStorage{db: db, logger: logger}
}

// SaveTopics replaces every topic for a News item, since the classifier
// (C8) re-derives the full tag set each time it runs rather than appending.
func (s *TopicStorage) SaveTopics(ctx context.Context, newsID string, topics []models.Topic) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin topics transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE news_id = ?`, newsID); err != nil {
		return fmt.Errorf("failed to clear topics: %w", err)
	}

	for _, topic := range topics {
		if _, err := tx.ExecContext(ctx, `INSERT INTO topics (news_id, tag, rank) VALUES (?, ?, ?)`,
			newsID, topic.Tag, topic.Rank); err != nil {
			return fmt.Errorf("failed to save topic: %w", err)
		}
	}

	return tx.Commit()
}

func (s *TopicStorage) TopicsForNews(ctx context.Context, newsID string) ([]models.Topic, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT news_id, tag, rank FROM topics WHERE news_id = ? ORDER BY rank ASC`, newsID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var topics []models.Topic
	for rows.Next() {
		var topic models.Topic
		if err := rows.Scan(&topic.NewsID, &topic.Tag, &topic.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}
