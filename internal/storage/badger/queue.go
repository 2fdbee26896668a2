// Package badger is the source-adapter ingestion staging queue (C3):
// a visibility-timeout redelivery queue between a poller's fetch and the
// ingest pipeline's transactional write, so a crashed enrichment worker
// never loses a fetched-but-unwritten item. Grounded directly on the
// teacher's internal/queue.BadgerManager.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/models"
)

// ErrNoMessage is returned when the queue has nothing currently visible.
var ErrNoMessage = errors.New("ingestion staging queue: no messages")

// StagedItem is a RawNews item waiting to be written by the ingest
// pipeline, tagged with the source it came from.
type StagedItem struct {
	ID         string         `json:"id"`
	SourceID   string         `json:"source_id"`
	Raw        models.RawNews `json:"raw"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	VisibleAt  time.Time      `json:"visible_at"`
	ReceiveCount int          `json:"receive_count"`
}

// Queue is a persistent, visibility-timeout redelivery queue backed by
// Badger, used to decouple adapter polling from the ingest pipeline's
// write rate without needing cross-store transactional atomicity (that
// invariant belongs to the outbox, which stays in SQLite — see DESIGN.md).
type Queue struct {
	db                *badger.DB
	name              string
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

// Open opens (or creates) a Badger database at path and returns a Queue
// over it named name.
func Open(path, name string, visibilityTimeout time.Duration, maxReceive int, logger arbor.ILogger) (*Queue, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at %s: %w", path, err)
	}
	return NewQueue(db, name, visibilityTimeout, maxReceive, logger)
}

// NewQueue wraps an already-open *badger.DB, the way NewBadgerManager does.
func NewQueue(db *badger.DB, name string, visibilityTimeout time.Duration, maxReceive int, logger arbor.ILogger) (*Queue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if name == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}
	return &Queue{db: db, name: name, visibilityTimeout: visibilityTimeout, maxReceive: maxReceive, logger: logger}, nil
}

// Close closes the underlying Badger database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue stages a fetched RawNews item, immediately visible to Receive.
func (q *Queue) Enqueue(ctx context.Context, sourceID string, raw models.RawNews) error {
	id := uuid.New().String()
	item := StagedItem{
		ID:         id,
		SourceID:   sourceID,
		Raw:        raw,
		EnqueuedAt: time.Now(),
		VisibleAt:  time.Now(),
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal staged item: %w", err)
	}

	return q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(q.itemKey(id), data); err != nil {
			return err
		}
		return txn.Set(q.indexKey(item.VisibleAt, id), []byte{})
	})
}

// Receive claims the next visible item, making it invisible for
// visibilityTimeout. The returned ack function deletes it permanently once
// the ingest pipeline has durably written it; callers must call ack only
// after a successful write, never before (§4.3's at-least-once contract).
func (q *Queue) Receive(ctx context.Context) (*StagedItem, func() error, error) {
	var item StagedItem
	var oldIndexKey []byte

	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", q.name))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := q.parseIndexKey(key)
			if err != nil {
				continue
			}
			if ts.After(now) {
				break // keys are sorted by visibility time
			}

			itemEntry, err := txn.Get(q.itemKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					_ = txn.Delete(key)
					continue
				}
				return err
			}

			if err := itemEntry.Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return err
			}

			if item.ReceiveCount >= q.maxReceive {
				q.logger.Warn().Str("id", id).Str("source_id", item.SourceID).Msg("staged item exceeded max receive, dropping")
				_ = txn.Delete(key)
				_ = txn.Delete(q.itemKey(id))
				continue
			}

			found = true
			oldIndexKey = key
			break
		}

		if !found {
			return ErrNoMessage
		}

		item.ReceiveCount++
		item.VisibleAt = time.Now().Add(q.visibilityTimeout)

		newData, err := json.Marshal(item)
		if err != nil {
			return err
		}
		if err := txn.Set(q.itemKey(item.ID), newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(q.indexKey(item.VisibleAt, item.ID), []byte{})
	})
	if err != nil {
		return nil, nil, err
	}

	id := item.ID
	ack := func() error {
		return q.db.Update(func(txn *badger.Txn) error {
			entry, err := txn.Get(q.itemKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					return nil
				}
				return err
			}

			var current StagedItem
			if err := entry.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}

			if err := txn.Delete(q.indexKey(current.VisibleAt, id)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
			return txn.Delete(q.itemKey(id))
		})
	}

	return &item, ack, nil
}

func (q *Queue) itemKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:item:%s", q.name, id))
}

func (q *Queue) indexKey(visibleAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", q.name, visibleAt.UnixNano(), id))
}

func (q *Queue) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := fmt.Sprintf("queue:%s:index:", q.name)
	if len(key) <= len(prefix)+21 {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}
	suffix := string(key[len(prefix):])

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, ts), suffix[21:], nil
}
