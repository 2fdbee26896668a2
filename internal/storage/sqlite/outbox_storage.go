package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// OutboxStorage implements interfaces.OutboxStorage for SQLite, claiming
// rows the same way NewsStorage.ClaimUnenriched emulates SKIP LOCKED (C13).
type OutboxStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewOutboxStorage creates a new OutboxStorage instance.
func NewOutboxStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.OutboxStorage {
	return &OutboxStorage{db: db, logger: logger}
}

const outboxSelectColumns = `SELECT id, type, payload, status, retries, next_attempt_at, claimed_by, claimed_at, created_at, sent_at`

// Enqueue inserts a new Pending row, defaulting NextAttemptAt to now when
// the caller left it zero.
func (s *OutboxStorage) Enqueue(ctx context.Context, event *models.OutboxEvent) error {
	now := time.Now()
	nextAttempt := event.NextAttemptAt
	if nextAttempt.IsZero() {
		nextAttempt = now
	}
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO outbox_events (id, type, payload, status, retries, next_attempt_at, created_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?)
	`, event.ID, string(event.Type), event.Payload, nextAttempt.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	return nil
}

func (s *OutboxStorage) ClaimPending(ctx context.Context, owner string, limit int) ([]*models.OutboxEvent, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	// A claim is stale after 5 minutes without being marked sent/retried;
	// treat it the same as unclaimed so a crashed relay worker's rows get
	// picked back up.
	staleCutoff := now - 300

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM outbox_events
		WHERE status = 'pending'
		AND next_attempt_at <= ?
		AND (claimed_at IS NULL OR claimed_at < ?)
		ORDER BY created_at ASC
		LIMIT ?
	`, now, staleCutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select claimable outbox events: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan claimable outbox id: %w", err)
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

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, owner, now)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	updateQuery := fmt.Sprintf(`UPDATE outbox_events SET claimed_by = ?, claimed_at = ? WHERE id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := tx.ExecContext(ctx, updateQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to mark outbox claim: %w", err)
	}

	selectArgs := make([]interface{}, len(ids))
	for i, id := range ids {
		selectArgs[i] = id
	}
	selectQuery := outboxSelectColumns + " FROM outbox_events WHERE id IN (" + strings.Join(placeholders, ",") + ") ORDER BY created_at ASC"
	finalRows, err := tx.QueryContext(ctx, selectQuery, selectArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to re-select claimed outbox events: %w", err)
	}
	defer finalRows.Close()

	var claimed []*models.OutboxEvent
	for finalRows.Next() {
		event, err := scanOutboxEvent(finalRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed outbox event: %w", err)
		}
		claimed = append(claimed, event)
	}
	if err := finalRows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit outbox claim: %w", err)
	}

	return claimed, nil
}

func (s *OutboxStorage) MarkSent(ctx context.Context, id string) error {
	_, err := s.db.DB().ExecContext(ctx, `
		UPDATE outbox_events SET status = 'sent', sent_at = ?, claimed_by = NULL, claimed_at = NULL WHERE id = ?
	`, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event sent: %w", err)
	}
	return nil
}

func (s *OutboxStorage) MarkRetry(ctx context.Context, id string, nextAttemptAt time.Time) error {
	_, err := s.db.DB().ExecContext(ctx, `
		UPDATE outbox_events SET retries = retries + 1, next_attempt_at = ?, claimed_by = NULL, claimed_at = NULL WHERE id = ?
	`, nextAttemptAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event for retry: %w", err)
	}
	return nil
}

func (s *OutboxStorage) MarkDeadLettered(ctx context.Context, id string) error {
	_, err := s.db.DB().ExecContext(ctx, `
		UPDATE outbox_events SET status = 'dead_lettered', claimed_by = NULL, claimed_at = NULL WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to dead-letter outbox event: %w", err)
	}
	return nil
}

// PurgeSentBefore deletes sent events older than cutoff, bounding the
// outbox table's growth per the retention window (C13).
func (s *OutboxStorage) PurgeSentBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.DB().ExecContext(ctx, `DELETE FROM outbox_events WHERE status = 'sent' AND sent_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sent outbox events: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged outbox events: %w", err)
	}
	return int(affected), nil
}

func scanOutboxEvent(row rowScanner) (*models.OutboxEvent, error) {
	var event models.OutboxEvent
	var typ, status string
	var claimedBy sql.NullString
	var claimedAt, sentAt sql.NullInt64
	var nextAttemptAt, createdAt int64

	err := row.Scan(&event.ID, &typ, &event.Payload, &status, &event.Retries, &nextAttemptAt, &claimedBy, &claimedAt, &createdAt, &sentAt)
	if err != nil {
		return nil, err
	}

	event.Type = models.OutboxEventType(typ)
	event.Status = models.OutboxStatus(status)
	event.NextAttemptAt = time.Unix(nextAttemptAt, 0)
	event.CreatedAt = time.Unix(createdAt, 0)
	if claimedBy.Valid {
		event.ClaimedBy = claimedBy.String
	}
	if claimedAt.Valid {
		t := time.Unix(claimedAt.Int64, 0)
		event.ClaimedAt = &t
	}
	if sentAt.Valid {
		t := time.Unix(sentAt.Int64, 0)
		event.SentAt = &t
	}

	return &event, nil
}
