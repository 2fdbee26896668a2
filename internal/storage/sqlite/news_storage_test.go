package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewSQLiteDB(arbor.NewLogger(), dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSource(t *testing.T, db *SQLiteDB, code string) *models.Source {
	t.Helper()
	storage := NewSourceStorage(db, arbor.NewLogger())
	now := time.Now()
	source := &models.Source{
		ID:         "src-" + code,
		Code:       code,
		Kind:       models.SourceKindHTML,
		Locator:    "https://example.invalid/" + code,
		TrustLevel: 5,
		Enabled:    true,
		Health:     models.SourceHealthHealthy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := storage.SaveSource(context.Background(), source); err != nil {
		t.Fatalf("failed to seed source: %v", err)
	}
	return source
}

func newTestNews(id, sourceID, externalID, contentHash string) *models.News {
	now := time.Now()
	return &models.News{
		ID:               id,
		SourceID:         sourceID,
		ExternalID:       externalID,
		Title:            "title " + id,
		Text:             "text " + id,
		ContentHash:      contentHash,
		PublishedAt:      now,
		IngestedAt:       now,
		EnrichmentStatus: models.EnrichmentPending,
	}
}

// TestNewsStorage_TryInsert_SameRowIsDuplicate covers the pre-check path:
// a second TryInsert for the same content_hash returns Duplicate=true and
// the original row rather than erroring or inserting a second one.
func TestNewsStorage_TryInsert_SameRowIsDuplicate(t *testing.T) {
	db := setupTestDB(t)
	source := seedSource(t, db, "src-a")
	storage := NewNewsStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := newTestNews("news-1", source.ID, "ext-1", "hash-1")
	result, err := storage.TryInsert(ctx, first, nil, nil)
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first insert should not be a duplicate")
	}

	second := newTestNews("news-2", source.ID, "ext-2", "hash-1")
	result, err = storage.TryInsert(ctx, second, nil, nil)
	if err != nil {
		t.Fatalf("second insert (duplicate content_hash) failed: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("second insert with the same content_hash should be reported as a duplicate")
	}
	if result.News.ID != first.ID {
		t.Errorf("duplicate result should return the original row, got id %s, want %s", result.News.ID, first.ID)
	}
}

// TestNewsStorage_TryInsert_DuplicateSourceExternalID covers the
// (source_id, external_id) half of the unique-constraint pair.
func TestNewsStorage_TryInsert_DuplicateSourceExternalID(t *testing.T) {
	db := setupTestDB(t)
	source := seedSource(t, db, "src-b")
	storage := NewNewsStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := newTestNews("news-1", source.ID, "ext-shared", "hash-a")
	if _, err := storage.TryInsert(ctx, first, nil, nil); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	second := newTestNews("news-2", source.ID, "ext-shared", "hash-b")
	result, err := storage.TryInsert(ctx, second, nil, nil)
	if err != nil {
		t.Fatalf("second insert (duplicate source/external id) failed: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("second insert with the same (source_id, external_id) should be reported as a duplicate")
	}
	if result.News.ID != first.ID {
		t.Errorf("duplicate result should return the original row, got id %s, want %s", result.News.ID, first.ID)
	}
}

// TestNewsStorage_TryInsert_ConcurrentRaceIsDuplicateNotError exercises the
// race the pre-check SELECT can lose: two goroutines calling TryInsert for
// the same content_hash at once must both succeed, with exactly one
// reporting Duplicate=false and the other Duplicate=true — never a hard
// error from the losing INSERT's unique-constraint violation.
func TestNewsStorage_TryInsert_ConcurrentRaceIsDuplicateNotError(t *testing.T) {
	db := setupTestDB(t)
	source := seedSource(t, db, "src-c")
	storage := NewNewsStorage(db, arbor.NewLogger())
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	duplicates := make([]bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			news := newTestNews(idFor(i), source.ID, "ext-race", "hash-race")
			result, err := storage.TryInsert(ctx, news, nil, nil)
			errs[i] = err
			if err == nil {
				duplicates[i] = result.Duplicate
			}
		}(i)
	}
	wg.Wait()

	nonDuplicates := 0
	for i, err := range errs {
		if err != nil {
			t.Fatalf("attempt %d: TryInsert returned a hard error instead of resolving the race: %v", i, err)
		}
		if !duplicates[i] {
			nonDuplicates++
		}
	}
	if nonDuplicates != 1 {
		t.Errorf("expected exactly one non-duplicate winner out of %d concurrent inserts, got %d", attempts, nonDuplicates)
	}
}

func idFor(i int) string {
	return "race-news-" + string(rune('a'+i))
}
