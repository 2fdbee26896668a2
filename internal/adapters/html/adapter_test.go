package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/adapters/ratelimit"
	"github.com/cegradar/cegradar/internal/models"
)

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Get(ctx context.Context, rawURL string) (string, error) {
	body, ok := f.pages[rawURL]
	if !ok {
		return "", assert.AnError
	}
	return body, nil
}

const listingHTML = `<html><body>
<a class="article" href="/news/2">Вторая новость</a>
<a class="article" href="/news/1">Первая новость</a>
</body></html>`

const articleHTML = `<html><body>
<h1>Газпром увеличил добычу газа</h1>
<article><p>Газпром сообщил о росте добычи на 5 процентов.</p><img src="/img/1.jpg" alt="chart"></article>
</body></html>`

func TestStrategy_Poll_FetchesNewArticlesOnly(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/news":   listingHTML,
		"https://example.com/news/2": articleHTML,
		"https://example.com/news/1": articleHTML,
	}}
	strategy := NewStrategy(fetcher, ratelimit.New(100), arbor.NewLogger())
	source := &models.Source{
		ID:      "src1",
		Locator: "https://example.com/news",
		Config:  models.Metadata{"list_link_selector": "a.article"},
	}

	items, next, err := strategy.Poll(context.Background(), source, "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/news/2", next)
	require.Len(t, items, 2)
	assert.Equal(t, "Газпром увеличил добычу газа", items[0].Title)
	require.Len(t, items[0].Images, 1)

	items2, next2, err := strategy.Poll(context.Background(), source, next)
	require.NoError(t, err)
	assert.Empty(t, items2)
	assert.Equal(t, next, next2)
}
