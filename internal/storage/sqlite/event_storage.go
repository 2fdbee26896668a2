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

// EventStorage implements interfaces.EventStorage for SQLite: extracted
// events (C9) and the CAUSES/IMPACTS edges the CMNLN engine and the
// event-study analyser score over them (C10, C11).
type EventStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewEventStorage creates a new EventStorage instance.
func NewEventStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.EventStorage {
	return &EventStorage{db: db, logger: logger}
}

const eventSelectColumns = `SELECT id, news_id, type, title, timestamp, confidence, is_anchor, attrs, created_at`

func (s *EventStorage) SaveEvent(ctx context.Context, event *models.Event) error {
	attrsJSON, err := json.Marshal(event.Attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal event attrs: %w", err)
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO events (id, news_id, type, title, timestamp, confidence, is_anchor, attrs, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			timestamp = excluded.timestamp,
			confidence = excluded.confidence,
			is_anchor = excluded.is_anchor,
			attrs = excluded.attrs
	`, event.ID, event.NewsID, event.Type, event.Title, event.Timestamp.Unix(), event.Confidence,
		boolToInt(event.IsAnchor), string(attrsJSON), event.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (s *EventStorage) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	row := s.db.DB().QueryRowContext(ctx, eventSelectColumns+" FROM events WHERE id = ?", id)
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, &common.ResourceNotFoundError{Kind: "event", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (s *EventStorage) EventsForNews(ctx context.Context, newsID string) ([]*models.Event, error) {
	rows, err := s.db.DB().QueryContext(ctx, eventSelectColumns+" FROM events WHERE news_id = ? ORDER BY timestamp ASC", newsID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for news: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsInWindow returns events with Timestamp in [from, to), excluding
// those belonging to excludeNewsID, used by the CMNLN engine's forward and
// retroactive linking passes (§4.7) so a news item never links against its
// own extracted events.
func (s *EventStorage) EventsInWindow(ctx context.Context, from, to time.Time, excludeNewsID string) ([]*models.Event, error) {
	rows, err := s.db.DB().QueryContext(ctx, eventSelectColumns+`
		FROM events
		WHERE timestamp >= ? AND timestamp < ? AND news_id != ?
		ORDER BY timestamp ASC
	`, from.Unix(), to.Unix(), excludeNewsID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events in window: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *EventStorage) UpsertCausalEdge(ctx context.Context, edge *models.CausalEdge) error {
	evidenceJSON, err := json.Marshal(edge.EvidenceSet)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence set: %w", err)
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO causal_edges (id, cause_id, effect_id, kind, conf_prior, conf_text, conf_market, conf_total, lag_matched, retroactive, evidence_set, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cause_id, effect_id) DO UPDATE SET
			kind = excluded.kind,
			conf_prior = excluded.conf_prior,
			conf_text = excluded.conf_text,
			conf_market = excluded.conf_market,
			conf_total = excluded.conf_total,
			lag_matched = excluded.lag_matched,
			retroactive = excluded.retroactive,
			evidence_set = excluded.evidence_set,
			description = excluded.description,
			updated_at = excluded.updated_at
	`, edge.ID, edge.CauseID, edge.EffectID, string(edge.Kind), edge.ConfPrior, edge.ConfText, edge.ConfMarket,
		edge.ConfTotal, boolToInt(edge.LagMatched), boolToInt(edge.Retroactive), string(evidenceJSON), nullableString(edge.Description),
		edge.CreatedAt.Unix(), edge.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert causal edge: %w", err)
	}
	return nil
}

func (s *EventStorage) GetCausalEdge(ctx context.Context, causeID, effectID string) (*models.CausalEdge, error) {
	row := s.db.DB().QueryRowContext(ctx, causalEdgeSelectColumns+" FROM causal_edges WHERE cause_id = ? AND effect_id = ?", causeID, effectID)
	edge, err := scanCausalEdge(row)
	if err == sql.ErrNoRows {
		return nil, &common.ResourceNotFoundError{Kind: "causal_edge", ID: causeID + "->" + effectID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get causal edge: %w", err)
	}
	return edge, nil
}

func (s *EventStorage) DeleteCausalEdge(ctx context.Context, id string) error {
	_, err := s.db.DB().ExecContext(ctx, `DELETE FROM causal_edges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete causal edge: %w", err)
	}
	return nil
}

func (s *EventStorage) EdgesFromCause(ctx context.Context, causeID string) ([]*models.CausalEdge, error) {
	rows, err := s.db.DB().QueryContext(ctx, causalEdgeSelectColumns+" FROM causal_edges WHERE cause_id = ?", causeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges from cause: %w", err)
	}
	defer rows.Close()
	return scanCausalEdges(rows)
}

func (s *EventStorage) EdgesToEffect(ctx context.Context, effectID string) ([]*models.CausalEdge, error) {
	rows, err := s.db.DB().QueryContext(ctx, causalEdgeSelectColumns+" FROM causal_edges WHERE effect_id = ?", effectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges to effect: %w", err)
	}
	defer rows.Close()
	return scanCausalEdges(rows)
}

func (s *EventStorage) SaveImpactEdge(ctx context.Context, edge *models.ImpactEdge) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO impact_edges (id, event_id, ticker, ar, car, volume_ratio, significant, conf_market, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id, ticker) DO UPDATE SET
			ar = excluded.ar,
			car = excluded.car,
			volume_ratio = excluded.volume_ratio,
			significant = excluded.significant,
			conf_market = excluded.conf_market
	`, edge.ID, edge.EventID, edge.Ticker, edge.AR, edge.CAR, edge.VolumeRatio, boolToInt(edge.Significant), edge.ConfMarket, edge.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save impact edge: %w", err)
	}
	return nil
}

func (s *EventStorage) ImpactEdgesForEvent(ctx context.Context, eventID string) ([]*models.ImpactEdge, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT id, event_id, ticker, ar, car, volume_ratio, significant, conf_market, created_at FROM impact_edges WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list impact edges: %w", err)
	}
	defer rows.Close()

	var edges []*models.ImpactEdge
	for rows.Next() {
		var edge models.ImpactEdge
		var significant int
		var createdAt int64
		if err := rows.Scan(&edge.ID, &edge.EventID, &edge.Ticker, &edge.AR, &edge.CAR, &edge.VolumeRatio, &significant, &edge.ConfMarket, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan impact edge: %w", err)
		}
		edge.Significant = significant == 1
		edge.CreatedAt = time.Unix(createdAt, 0)
		edges = append(edges, &edge)
	}
	return edges, rows.Err()
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var event models.Event
	var timestamp, createdAt int64
	var isAnchor int
	var attrsJSON string

	err := row.Scan(&event.ID, &event.NewsID, &event.Type, &event.Title, &timestamp, &event.Confidence, &isAnchor, &attrsJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	event.Timestamp = time.Unix(timestamp, 0)
	event.CreatedAt = time.Unix(createdAt, 0)
	event.IsAnchor = isAnchor == 1
	if attrsJSON != "" {
		if err := json.Unmarshal([]byte(attrsJSON), &event.Attrs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event attrs: %w", err)
		}
	}
	return &event, nil
}

func scanEvents(rows *sql.Rows) ([]*models.Event, error) {
	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

const causalEdgeSelectColumns = `SELECT id, cause_id, effect_id, kind, conf_prior, conf_text, conf_market, conf_total, lag_matched, retroactive, evidence_set, description, created_at, updated_at`

func scanCausalEdge(row rowScanner) (*models.CausalEdge, error) {
	var edge models.CausalEdge
	var kind string
	var lagMatched, retroactive int
	var evidenceJSON, description sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&edge.ID, &edge.CauseID, &edge.EffectID, &kind, &edge.ConfPrior, &edge.ConfText, &edge.ConfMarket,
		&edge.ConfTotal, &lagMatched, &retroactive, &evidenceJSON, &description, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	edge.Kind = models.CausalKind(kind)
	edge.LagMatched = lagMatched == 1
	edge.Retroactive = retroactive == 1
	if evidenceJSON.Valid && evidenceJSON.String != "" {
		if err := json.Unmarshal([]byte(evidenceJSON.String), &edge.EvidenceSet); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence set: %w", err)
		}
	}
	if description.Valid {
		edge.Description = description.String
	}
	edge.CreatedAt = time.Unix(createdAt, 0)
	edge.UpdatedAt = time.Unix(updatedAt, 0)
	return &edge, nil
}

func scanCausalEdges(rows *sql.Rows) ([]*models.CausalEdge, error) {
	var edges []*models.CausalEdge
	for rows.Next() {
		edge, err := scanCausalEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan causal edge: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}
