package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// NewsStorage implements interfaces.NewsStorage for SQLite.
type NewsStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewNewsStorage creates a new NewsStorage instance.
func NewNewsStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.NewsStorage {
	return &NewsStorage{db: db, logger: logger}
}

const newsSelectColumns = `SELECT id, source_id, external_id, title, text, content_hash, published_at, ingested_at, pending_images, is_ad, antispam_score, antispam_reasons, enrichment_status, claimed_by, claimed_at, sector, country, news_type, news_subtype, tags`

// TryInsert writes the news row, its images, and an outbox event inside one
// transaction, per the invariant that every domain write carries its own
// outbox record along for the ride (§4.3). A unique-constraint violation on
// content_hash or (source_id, external_id) is reported as Duplicate=true,
// not surfaced as an error — whether caught by the pre-check SELECT or, if a
// concurrent writer commits between that check and the INSERT, by the
// driver's own constraint error.
func (s *NewsStorage) TryInsert(ctx context.Context, news *models.News, images []models.RawImage, outboxPayload []byte) (*models.TryInsertResult, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM news WHERE content_hash = ? OR (source_id = ? AND external_id = ?)`,
		news.ContentHash, news.SourceID, news.ExternalID).Scan(&existingID)
	if err == nil {
		existing, getErr := s.GetNews(ctx, existingID)
		if getErr != nil {
			return nil, getErr
		}
		return &models.TryInsertResult{News: existing, Duplicate: true}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}

	reasonsJSON, err := json.Marshal(news.AntispamReasons)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal antispam reasons: %w", err)
	}
	tagsJSON, err := json.Marshal(news.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	pendingImagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pending images: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO news (id, source_id, external_id, title, text, content_hash, published_at, ingested_at, pending_images, is_ad, antispam_score, antispam_reasons, enrichment_status, sector, country, news_type, news_subtype, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		news.ID, news.SourceID, news.ExternalID, news.Title, news.Text, news.ContentHash,
		news.PublishedAt.Unix(), news.IngestedAt.Unix(), string(pendingImagesJSON), boolToInt(news.IsAd), news.AntispamScore,
		string(reasonsJSON), string(news.EnrichmentStatus), nullableString(news.Sector),
		nullableString(news.Country), nullableString(news.NewsType), nullableString(news.NewsSubtype),
		string(tagsJSON),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			// Lost the race: a concurrent writer (backfill vs. live polling,
			// §4.3's normal case) committed the same content_hash or
			// (source_id, external_id) between our pre-check and this
			// INSERT. Fall back to the same dedup lookup rather than
			// surfacing a hard error.
			var raceID string
			if scanErr := tx.QueryRowContext(ctx, `SELECT id FROM news WHERE content_hash = ? OR (source_id = ? AND external_id = ?)`,
				news.ContentHash, news.SourceID, news.ExternalID).Scan(&raceID); scanErr != nil {
				return nil, fmt.Errorf("failed to resolve duplicate after race: %w", scanErr)
			}
			existing, getErr := s.GetNews(ctx, raceID)
			if getErr != nil {
				return nil, getErr
			}
			return &models.TryInsertResult{News: existing, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("failed to insert news: %w", err)
	}

	if outboxPayload != nil {
		outboxID := uuid.New().String()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_events (id, type, payload, status, retries, next_attempt_at, created_at)
			VALUES (?, ?, ?, 'pending', 0, ?, ?)
		`, outboxID, string(models.OutboxEventNewsIngested), outboxPayload, time.Now().Unix(), time.Now().Unix()); err != nil {
			return nil, fmt.Errorf("failed to write outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit news insert: %w", err)
	}

	s.logger.Info().Str("id", news.ID).Str("source_id", news.SourceID).Msg("news inserted")
	return &models.TryInsertResult{News: news, Duplicate: false}, nil
}

func (s *NewsStorage) GetNews(ctx context.Context, id string) (*models.News, error) {
	row := s.db.DB().QueryRowContext(ctx, newsSelectColumns+" FROM news WHERE id = ?", id)
	news, err := scanNews(row)
	if err == sql.ErrNoRows {
		return nil, &common.ResourceNotFoundError{Kind: "news", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get news: %w", err)
	}
	return news, nil
}

// UpdateEnrichment persists the results of the enrichment pipeline (antispam
// verdict, sector/country/type classification, tags), clears the claim, and
// — when outboxPayload is non-nil — writes the announcing outbox event in
// the same transaction, the same atomicity TryInsert gives the initial
// ingest write (§4.3 invariant 1, §4.4 step 7).
func (s *NewsStorage) UpdateEnrichment(ctx context.Context, news *models.News, outboxType models.OutboxEventType, outboxPayload []byte) error {
	reasonsJSON, err := json.Marshal(news.AntispamReasons)
	if err != nil {
		return fmt.Errorf("failed to marshal antispam reasons: %w", err)
	}
	tagsJSON, err := json.Marshal(news.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin enrichment update transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE news SET
			is_ad = ?,
			antispam_score = ?,
			antispam_reasons = ?,
			enrichment_status = ?,
			sector = ?,
			country = ?,
			news_type = ?,
			news_subtype = ?,
			tags = ?,
			claimed_by = NULL,
			claimed_at = NULL
		WHERE id = ?
	`,
		boolToInt(news.IsAd), news.AntispamScore, string(reasonsJSON), string(news.EnrichmentStatus),
		nullableString(news.Sector), nullableString(news.Country), nullableString(news.NewsType),
		nullableString(news.NewsSubtype), string(tagsJSON), news.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrichment: %w", err)
	}

	if outboxPayload != nil {
		outboxID := uuid.New().String()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_events (id, type, payload, status, retries, next_attempt_at, created_at)
			VALUES (?, ?, ?, 'pending', 0, ?, ?)
		`, outboxID, string(outboxType), outboxPayload, time.Now().Unix(), time.Now().Unix()); err != nil {
			return fmt.Errorf("failed to write enrichment outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit enrichment update: %w", err)
	}
	return nil
}

// ClaimUnenriched emulates SELECT ... FOR UPDATE SKIP LOCKED over plain
// SQLite: a row counts as claimed if claimed_at is within leaseDuration of
// now, so a crashed worker's claims expire and get picked up again (C6).
func (s *NewsStorage) ClaimUnenriched(ctx context.Context, owner string, limit int, leaseDuration time.Duration) ([]*models.News, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	leaseCutoff := time.Now().Add(-leaseDuration).Unix()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM news
		WHERE enrichment_status = 'pending'
		AND (claimed_at IS NULL OR claimed_at < ?)
		ORDER BY published_at ASC
		LIMIT ?
	`, leaseCutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select claimable news: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan claimable id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	now := time.Now().Unix()
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, owner, now)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE news SET claimed_by = ?, claimed_at = ? WHERE id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to mark claim: %w", err)
	}

	// Re-select fully-hydrated rows now that the claim stuck.
	selectQuery := newsSelectColumns + " FROM news WHERE id IN (" + strings.Join(placeholders, ",") + ")"
	selectArgs := make([]interface{}, len(ids))
	for i, id := range ids {
		selectArgs[i] = id
	}
	finalRows, err := tx.QueryContext(ctx, selectQuery, selectArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to re-select claimed news: %w", err)
	}
	defer finalRows.Close()

	var claimed []*models.News
	for finalRows.Next() {
		n, err := scanNews(finalRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed news: %w", err)
		}
		claimed = append(claimed, n)
	}
	if err := finalRows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return claimed, nil
}

func (s *NewsStorage) ReleaseClaim(ctx context.Context, newsID string) error {
	_, err := s.db.DB().ExecContext(ctx, `UPDATE news SET claimed_by = NULL, claimed_at = NULL WHERE id = ?`, newsID)
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

// Search runs an FTS5 match against the news_fts shadow table (§6.1).
func (s *NewsStorage) Search(ctx context.Context, query string, limit int) ([]*models.News, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT n.id, n.source_id, n.external_id, n.title, n.text, n.content_hash, n.published_at, n.ingested_at, n.pending_images, n.is_ad, n.antispam_score, n.antispam_reasons, n.enrichment_status, n.claimed_by, n.claimed_at, n.sector, n.country, n.news_type, n.news_subtype, n.tags
		FROM news_fts
		JOIN news n ON n.rowid = news_fts.rowid
		WHERE news_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search news: %w", err)
	}
	defer rows.Close()

	var results []*models.News
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

func scanNews(row rowScanner) (*models.News, error) {
	var n models.News
	var isAd int
	var pendingImagesJSON sql.NullString
	var reasonsJSON, status, tagsJSON string
	var publishedAt, ingestedAt int64
	var claimedBy, sector, country, newsType, newsSubtype sql.NullString
	var claimedAt sql.NullInt64

	err := row.Scan(
		&n.ID, &n.SourceID, &n.ExternalID, &n.Title, &n.Text, &n.ContentHash,
		&publishedAt, &ingestedAt, &pendingImagesJSON, &isAd, &n.AntispamScore, &reasonsJSON, &status,
		&claimedBy, &claimedAt, &sector, &country, &newsType, &newsSubtype, &tagsJSON,
	)
	if err != nil {
		return nil, err
	}

	n.IsAd = isAd == 1
	n.EnrichmentStatus = models.EnrichmentStatus(status)
	n.PublishedAt = time.Unix(publishedAt, 0)
	n.IngestedAt = time.Unix(ingestedAt, 0)
	if pendingImagesJSON.Valid && pendingImagesJSON.String != "" {
		_ = json.Unmarshal([]byte(pendingImagesJSON.String), &n.PendingImages)
	}
	if claimedBy.Valid {
		n.ClaimedBy = claimedBy.String
	}
	if claimedAt.Valid {
		t := time.Unix(claimedAt.Int64, 0)
		n.ClaimedAt = &t
	}
	if sector.Valid {
		n.Sector = sector.String
	}
	if country.Valid {
		n.Country = country.String
	}
	if newsType.Valid {
		n.NewsType = newsType.String
	}
	if newsSubtype.Valid {
		n.NewsSubtype = newsSubtype.String
	}
	if reasonsJSON != "" {
		_ = json.Unmarshal([]byte(reasonsJSON), &n.AntispamReasons)
	}
	if tagsJSON != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &n.Tags)
	}

	return &n, nil
}
