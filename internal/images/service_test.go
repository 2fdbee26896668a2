package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/models"
)

type fakeImageStorage struct {
	mu      sync.Mutex
	byDigest map[string]*models.Image
	links    []models.NewsImage
	pending  map[string][]models.RawImage
}

func newFakeImageStorage() *fakeImageStorage {
	return &fakeImageStorage{byDigest: map[string]*models.Image{}, pending: map[string][]models.RawImage{}}
}

func (f *fakeImageStorage) FindByDigest(ctx context.Context, digest string) (*models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byDigest[digest], nil
}
func (f *fakeImageStorage) SaveImage(ctx context.Context, img *models.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byDigest[img.Digest] = img
	return nil
}
func (f *fakeImageStorage) LinkToNews(ctx context.Context, link models.NewsImage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, link)
	return nil
}
func (f *fakeImageStorage) ImagesForNews(ctx context.Context, newsID string) ([]*models.Image, error) {
	return nil, nil
}
func (f *fakeImageStorage) PendingImages(ctx context.Context, newsID string) ([]models.RawImage, error) {
	return f.pending[newsID], nil
}
func (f *fakeImageStorage) ClearPendingImages(ctx context.Context, newsID string) error {
	delete(f.pending, newsID)
	return nil
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: uint8(y * 5), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestService_ProcessNewsDownloadsAndLinks(t *testing.T) {
	jpegBytes := testJPEG(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpegBytes)
	}))
	defer server.Close()

	store := newFakeImageStorage()
	store.pending["news1"] = []models.RawImage{{URL: server.URL + "/a.jpg", AltText: "alt"}}

	svc, err := New(DefaultConfig(t.TempDir()), store, arbor.NewLogger())
	require.NoError(t, err)

	linked, err := svc.ProcessNews(context.Background(), "news1")
	require.NoError(t, err)
	assert.Equal(t, 1, linked)
	assert.Len(t, store.links, 1)
	assert.Len(t, store.byDigest, 1)

	_, stillPending := store.pending["news1"]
	assert.False(t, stillPending)
}

func TestService_ProcessNewsDedupesByDigest(t *testing.T) {
	jpegBytes := testJPEG(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpegBytes)
	}))
	defer server.Close()

	store := newFakeImageStorage()
	store.pending["news1"] = []models.RawImage{
		{URL: server.URL + "/a.jpg"},
		{URL: server.URL + "/b.jpg"},
	}

	svc, err := New(DefaultConfig(t.TempDir()), store, arbor.NewLogger())
	require.NoError(t, err)

	linked, err := svc.ProcessNews(context.Background(), "news1")
	require.NoError(t, err)
	assert.Equal(t, 2, linked, "both URLs link, even though they share one Image row")
	assert.Len(t, store.byDigest, 1, "identical bytes dedupe to a single stored image")
}

func TestService_ProcessNewsSkipsFailedFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store := newFakeImageStorage()
	store.pending["news1"] = []models.RawImage{{URL: server.URL + "/missing.jpg"}}

	svc, err := New(DefaultConfig(t.TempDir()), store, arbor.NewLogger())
	require.NoError(t, err)

	linked, err := svc.ProcessNews(context.Background(), "news1")
	require.NoError(t, err)
	assert.Equal(t, 0, linked)
}

func TestMakeThumbnail_ScalesDownLargestSide(t *testing.T) {
	jpegBytes := testJPEG(t)
	thumb, err := makeThumbnail(jpegBytes, "image/jpeg", 20)
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, 20)
	assert.LessOrEqual(t, cfg.Height, 20)
}
