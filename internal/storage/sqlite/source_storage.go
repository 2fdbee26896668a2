package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// SourceStorage implements interfaces.SourceStorage for SQLite.
type SourceStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewSourceStorage creates a new SourceStorage instance.
func NewSourceStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.SourceStorage {
	return &SourceStorage{db: db, logger: logger}
}

func (s *SourceStorage) SaveSource(ctx context.Context, source *models.Source) error {
	configJSON, err := json.Marshal(source.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal source config: %w", err)
	}

	query := `
		INSERT INTO sources (id, code, kind, locator, trust_level, enabled, poll_interval, backfill_days, config, health, last_error, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			kind = excluded.kind,
			locator = excluded.locator,
			trust_level = excluded.trust_level,
			enabled = excluded.enabled,
			poll_interval = excluded.poll_interval,
			backfill_days = excluded.backfill_days,
			config = excluded.config,
			health = excluded.health,
			last_error = excluded.last_error,
			retry_count = excluded.retry_count,
			updated_at = excluded.updated_at
	`

	_, err = s.db.DB().ExecContext(ctx, query,
		source.ID,
		source.Code,
		string(source.Kind),
		source.Locator,
		source.TrustLevel,
		boolToInt(source.Enabled),
		source.PollInterval,
		source.BackfillDays,
		string(configJSON),
		string(source.Health),
		nullableString(source.LastError),
		source.RetryCount,
		source.CreatedAt.Unix(),
		source.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}

	s.logger.Info().Str("id", source.ID).Str("code", source.Code).Msg("source saved")
	return nil
}

func (s *SourceStorage) GetSource(ctx context.Context, id string) (*models.Source, error) {
	row := s.db.DB().QueryRowContext(ctx, sourceSelectColumns+" FROM sources WHERE id = ?", id)
	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, &common.ResourceNotFoundError{Kind: "source", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return source, nil
}

func (s *SourceStorage) GetSourceByCode(ctx context.Context, code string) (*models.Source, error) {
	row := s.db.DB().QueryRowContext(ctx, sourceSelectColumns+" FROM sources WHERE code = ?", code)
	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, &common.ResourceNotFoundError{Kind: "source", ID: code}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source by code: %w", err)
	}
	return source, nil
}

func (s *SourceStorage) ListSources(ctx context.Context) ([]*models.Source, error) {
	rows, err := s.db.DB().QueryContext(ctx, sourceSelectColumns+" FROM sources ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

func (s *SourceStorage) ListEnabledSources(ctx context.Context) ([]*models.Source, error) {
	rows, err := s.db.DB().QueryContext(ctx, sourceSelectColumns+" FROM sources WHERE enabled = 1 ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled sources: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

func (s *SourceStorage) MarkHealth(ctx context.Context, id string, health models.SourceHealth, lastErr string) error {
	query := `
		UPDATE sources SET
			health = ?,
			last_error = ?,
			retry_count = CASE WHEN ? = '' THEN 0 ELSE retry_count + 1 END,
			updated_at = ?
		WHERE id = ?
	`
	_, err := s.db.DB().ExecContext(ctx, query, string(health), nullableString(lastErr), lastErr, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark source health: %w", err)
	}
	return nil
}

func (s *SourceStorage) GetParserState(ctx context.Context, sourceID string) (*models.ParserState, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT source_id, last_external_id, last_polled_at FROM parser_states WHERE source_id = ?`, sourceID)

	var state models.ParserState
	var lastPolled sql.NullInt64
	if err := row.Scan(&state.SourceID, &state.LastExternalID, &lastPolled); err != nil {
		if err == sql.ErrNoRows {
			return &models.ParserState{SourceID: sourceID}, nil
		}
		return nil, fmt.Errorf("failed to get parser state: %w", err)
	}
	if lastPolled.Valid {
		state.LastPolledAt = time.Unix(lastPolled.Int64, 0)
	}
	return &state, nil
}

func (s *SourceStorage) UpdateParserState(ctx context.Context, state *models.ParserState) error {
	var lastPolled sql.NullInt64
	if !state.LastPolledAt.IsZero() {
		lastPolled = sql.NullInt64{Int64: state.LastPolledAt.Unix(), Valid: true}
	}

	query := `
		INSERT INTO parser_states (source_id, last_external_id, last_polled_at)
		VALUES (?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			last_external_id = excluded.last_external_id,
			last_polled_at = excluded.last_polled_at
	`
	_, err := s.db.DB().ExecContext(ctx, query, state.SourceID, state.LastExternalID, lastPolled)
	if err != nil {
		return fmt.Errorf("failed to update parser state: %w", err)
	}
	return nil
}

const sourceSelectColumns = `SELECT id, code, kind, locator, trust_level, enabled, poll_interval, backfill_days, config, health, last_error, retry_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var source models.Source
	var kind, health string
	var enabled int
	var configJSON string
	var lastError sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&source.ID,
		&source.Code,
		&kind,
		&source.Locator,
		&source.TrustLevel,
		&enabled,
		&source.PollInterval,
		&source.BackfillDays,
		&configJSON,
		&health,
		&lastError,
		&source.RetryCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	source.Kind = models.SourceKind(kind)
	source.Health = models.SourceHealth(health)
	source.Enabled = enabled == 1
	if lastError.Valid {
		source.LastError = lastError.String
	}
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &source.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source config: %w", err)
		}
	}
	source.CreatedAt = time.Unix(createdAt, 0)
	source.UpdatedAt = time.Unix(updatedAt, 0)

	return &source, nil
}

func scanSources(rows *sql.Rows) ([]*models.Source, error) {
	var sources []*models.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}
	return sources, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
