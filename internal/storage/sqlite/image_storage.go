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

// ImageStorage implements interfaces.ImageStorage for SQLite.
type ImageStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewImageStorage creates a new ImageStorage instance.
func NewImageStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.ImageStorage {
	return &ImageStorage{db: db, logger: logger}
}

func (s *ImageStorage) FindByDigest(ctx context.Context, digest string) (*models.Image, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT id, digest, storage_path, thumb_path, content_type, width, height, size_bytes, created_at FROM images WHERE digest = ?`, digest)

	img, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, &common.ResourceNotFoundError{Kind: "image", ID: digest}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find image by digest: %w", err)
	}
	return img, nil
}

func (s *ImageStorage) SaveImage(ctx context.Context, img *models.Image) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO images (id, digest, storage_path, thumb_path, content_type, width, height, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO NOTHING
	`, img.ID, img.Digest, img.StoragePath, nullableString(img.ThumbPath), img.ContentType, img.Width, img.Height, img.SizeBytes, img.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

func (s *ImageStorage) LinkToNews(ctx context.Context, link models.NewsImage) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO news_images (news_id, image_id, alt_text, rank)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(news_id, image_id) DO UPDATE SET alt_text = excluded.alt_text, rank = excluded.rank
	`, link.NewsID, link.ImageID, link.AltText, link.Order)
	if err != nil {
		return fmt.Errorf("failed to link image to news: %w", err)
	}
	return nil
}

func (s *ImageStorage) ImagesForNews(ctx context.Context, newsID string) ([]*models.Image, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT i.id, i.digest, i.storage_path, i.thumb_path, i.content_type, i.width, i.height, i.size_bytes, i.created_at
		FROM images i
		JOIN news_images ni ON ni.image_id = i.id
		WHERE ni.news_id = ?
		ORDER BY ni.rank ASC
	`, newsID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images for news: %w", err)
	}
	defer rows.Close()

	var images []*models.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// PendingImages reads the raw image references staged on a News row at
// ingestion time, still awaiting fetch-and-digest.
func (s *ImageStorage) PendingImages(ctx context.Context, newsID string) ([]models.RawImage, error) {
	var raw sql.NullString
	err := s.db.DB().QueryRowContext(ctx, `SELECT pending_images FROM news WHERE id = ?`, newsID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, &common.ResourceNotFoundError{Kind: "news", ID: newsID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending images: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var images []models.RawImage
	if err := json.Unmarshal([]byte(raw.String), &images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending images: %w", err)
	}
	return images, nil
}

// ClearPendingImages empties the staging list once the image service has
// fetched and linked every reference in it.
func (s *ImageStorage) ClearPendingImages(ctx context.Context, newsID string) error {
	_, err := s.db.DB().ExecContext(ctx, `UPDATE news SET pending_images = NULL WHERE id = ?`, newsID)
	if err != nil {
		return fmt.Errorf("failed to clear pending images: %w", err)
	}
	return nil
}

func scanImage(row rowScanner) (*models.Image, error) {
	var img models.Image
	var thumbPath sql.NullString
	var createdAt int64

	err := row.Scan(&img.ID, &img.Digest, &img.StoragePath, &thumbPath, &img.ContentType, &img.Width, &img.Height, &img.SizeBytes, &createdAt)
	if err != nil {
		return nil, err
	}
	if thumbPath.Valid {
		img.ThumbPath = thumbPath.String
	}
	img.CreatedAt = time.Unix(createdAt, 0)
	return &img, nil
}
