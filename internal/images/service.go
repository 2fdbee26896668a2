// Package images is the image service (C5): it fetches the raw images a
// source adapter staged on a News row, content-addresses them by SHA-256,
// derives a thumbnail and persists both to a filesystem root, then links the
// resulting Image rows back to the News item. Grounded on the teacher's
// internal/services/crawler/image_storage.go, generalized from HTML-embedded
// <img> extraction to a fixed list of already-known image URLs (C3 adapters
// hand the pipeline a RawImage list directly, there is no HTML to scrape).
package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// Config controls download limits and filesystem layout, mirroring the
// teacher's ImageStorageConfig.
type Config struct {
	Root            string
	MaxImageSize    int64
	DownloadTimeout time.Duration
	Concurrency     int
	UserAgent       string
	ThumbMaxSide    int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(root string) Config {
	return Config{
		Root:            root,
		MaxImageSize:    10 * 1024 * 1024,
		DownloadTimeout: 15 * time.Second,
		Concurrency:     4,
		UserAgent:       "cegradar-image-fetcher/1.0",
		ThumbMaxSide:    320,
	}
}

// Service downloads, digests, thumbnails and persists images referenced by
// News rows.
type Service struct {
	config  Config
	storage interfaces.ImageStorage
	client  *http.Client
	logger  arbor.ILogger
}

// New creates an image Service and ensures its storage root exists.
func New(config Config, storage interfaces.ImageStorage, logger arbor.ILogger) (*Service, error) {
	if config.Root == "" {
		config.Root = "./data/images"
	}
	if err := os.MkdirAll(config.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image root: %w", err)
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Service{
		config:  config,
		storage: storage,
		client:  &http.Client{Timeout: config.DownloadTimeout},
		logger:  logger,
	}, nil
}

// ProcessNews fetches every image staged on newsID, persisting content-addressed
// copies and linking them to the News item, then clears the staging list.
// Individual fetch failures are logged and skipped; one bad image URL never
// blocks the rest of the batch.
func (s *Service) ProcessNews(ctx context.Context, newsID string) (int, error) {
	pending, err := s.storage.PendingImages(ctx, newsID)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending images for %s: %w", newsID, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, s.config.Concurrency)
	results := make(chan error, len(pending))

	for order, raw := range pending {
		sem <- struct{}{}
		order, raw := order, raw
		common.SafeGoWithContext(ctx, s.logger, fmt.Sprintf("image-fetch-%s-%d", newsID, order), func() {
			defer func() { <-sem }()
			results <- s.fetchAndLink(ctx, newsID, order, raw)
		})
	}

	var linked int
	for i := 0; i < len(pending); i++ {
		if err := <-results; err != nil {
			s.logger.Warn().Err(err).Str("news_id", newsID).Msg("image fetch failed, skipping")
			continue
		}
		linked++
	}

	if err := s.storage.ClearPendingImages(ctx, newsID); err != nil {
		return linked, fmt.Errorf("failed to clear pending images for %s: %w", newsID, err)
	}
	return linked, nil
}

func (s *Service) fetchAndLink(ctx context.Context, newsID string, order int, raw models.RawImage) error {
	data, contentType, err := s.download(ctx, raw.URL)
	if err != nil {
		return fmt.Errorf("download %s: %w", raw.URL, err)
	}

	digest := sha256.Sum256(data)
	hexDigest := hex.EncodeToString(digest[:])

	img, err := s.storage.FindByDigest(ctx, hexDigest)
	var notFound *common.ResourceNotFoundError
	if errors.As(err, &notFound) {
		img, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("lookup digest %s: %w", hexDigest, err)
	}

	if img == nil {
		storagePath, width, height, err := s.persist(hexDigest, data, contentType)
		if err != nil {
			return fmt.Errorf("persist %s: %w", raw.URL, err)
		}
		thumbPath, err := s.thumbnail(hexDigest, data, contentType)
		if err != nil {
			s.logger.Warn().Err(err).Str("digest", hexDigest).Msg("thumbnail derivation failed, storing without one")
		}

		img = &models.Image{
			ID:          common.NewID("img"),
			Digest:      hexDigest,
			StoragePath: storagePath,
			ThumbPath:   thumbPath,
			ContentType: contentType,
			Width:       width,
			Height:      height,
			SizeBytes:   int64(len(data)),
			CreatedAt:   time.Now(),
		}
		if err := s.storage.SaveImage(ctx, img); err != nil {
			return fmt.Errorf("save image %s: %w", hexDigest, err)
		}
	}

	return s.storage.LinkToNews(ctx, models.NewsImage{
		NewsID:  newsID,
		ImageID: img.ID,
		AltText: raw.AltText,
		Order:   order,
	})
}

func (s *Service) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return nil, "", fmt.Errorf("invalid image URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, "", fmt.Errorf("not an image: %s", contentType)
	}

	limited := io.LimitReader(resp.Body, s.config.MaxImageSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > s.config.MaxImageSize {
		return nil, "", fmt.Errorf("image exceeds max size of %d bytes", s.config.MaxImageSize)
	}

	return data, contentType, nil
}

func (s *Service) persist(digest string, data []byte, contentType string) (path string, width, height int, err error) {
	width, height, _ = decodeDimensions(data, contentType)

	ext := extensionFor(contentType)
	subDir := digest[:2]
	relPath := filepath.Join(subDir, digest+ext)
	fullPath := filepath.Join(s.config.Root, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", 0, 0, err
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", 0, 0, err
	}
	return relPath, width, height, nil
}

func (s *Service) thumbnail(digest string, data []byte, contentType string) (string, error) {
	thumbData, err := makeThumbnail(data, contentType, s.config.ThumbMaxSide)
	if err != nil {
		return "", err
	}

	relPath := filepath.Join(digest[:2], digest+"_thumb.jpg")
	fullPath := filepath.Join(s.config.Root, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, thumbData, 0644); err != nil {
		return "", err
	}
	return relPath, nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.Split(contentType, ";")[0]) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
