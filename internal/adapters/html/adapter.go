// Package html implements the HTML-page source strategy (C3, §4.1),
// grounded on the teacher's internal/services/crawler html_scraper.go
// (colly-based fetch) and link_extractor.go (goquery-based link discovery) —
// generalized to a plain net/http fetch since this domain only scrapes
// static article pages, never JS-rendered ones.
package html

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/adapters"
	"github.com/cegradar/cegradar/internal/adapters/ratelimit"
	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/models"
)

// Selectors describes how to pull article links and content out of a
// source's pages; configured per-source via Source.Config.
type Selectors struct {
	ListLink  string // CSS selector for <a> tags on the listing page
	Title     string // CSS selector for the article title
	Body      string // CSS selector for the article body container
	Published string // CSS selector for a machine-readable datetime attribute
}

func selectorsFromConfig(cfg models.Metadata) Selectors {
	return Selectors{
		ListLink:  orDefault(cfg["list_link_selector"], "a[href]"),
		Title:     orDefault(cfg["title_selector"], "h1"),
		Body:      orDefault(cfg["body_selector"], "article"),
		Published: cfg["published_selector"],
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Fetcher is the minimal HTTP surface the adapter needs, narrowed from
// *http.Client so tests can substitute a fake transport.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (string, error)
}

// httpFetcher is the production Fetcher, a thin context-aware wrapper
// around *http.Client the way the teacher's contextAwareTransport is.
type httpFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a Fetcher with the given timeout.
func NewHTTPFetcher(timeout time.Duration) Fetcher {
	return &httpFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *httpFetcher) Get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &common.TransientIOError{Op: "http_get " + rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == 408 || resp.StatusCode == 429 {
		return "", &common.TransientIOError{Op: "http_get " + rawURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &common.UnauthorizedError{Collaborator: rawURL}
	}
	if resp.StatusCode >= 400 {
		return "", &common.ResourceNotFoundError{Kind: "page", ID: rawURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &common.TransientIOError{Op: "http_read " + rawURL, Err: err}
	}
	return string(body), nil
}

// NewStrategy builds an adapters.Strategy that lists article links from
// source.Locator, fetches each new one, and extracts title/body/published
// via the CSS selectors in source.Config.
func NewStrategy(fetcher Fetcher, limiter *ratelimit.Limiter, logger arbor.ILogger) adapters.Strategy {
	converter := md.NewConverter("", true, nil)

	list := func(ctx context.Context, source *models.Source) ([]string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := fetcher.Get(ctx, source.Locator)
		if err != nil {
			return nil, err
		}
		return listArticleLinks(body, source.Locator, selectorsFromConfig(source.Config).ListLink)
	}

	fetchArticle := func(ctx context.Context, source *models.Source, articleURL string) (models.RawNews, error) {
		if err := limiter.Wait(ctx); err != nil {
			return models.RawNews{}, err
		}
		body, err := fetcher.Get(ctx, articleURL)
		if err != nil {
			return models.RawNews{}, err
		}
		return parseArticle(body, articleURL, source, selectorsFromConfig(source.Config), converter)
	}

	return adapters.Strategy{
		Poll: func(ctx context.Context, source *models.Source, cursor string) ([]models.RawNews, string, error) {
			links, err := list(ctx, source)
			if err != nil {
				return nil, cursor, err
			}

			fresh := newLinksSince(links, cursor)
			var items []models.RawNews
			for _, link := range fresh {
				raw, err := fetchArticle(ctx, source, link)
				if err != nil {
					logger.Warn().Err(err).Str("url", link).Msg("failed to fetch article, skipping")
					continue
				}
				items = append(items, raw)
			}

			next := cursor
			if len(links) > 0 {
				next = links[0]
			}
			return items, next, nil
		},
		Backfill: func(ctx context.Context, source *models.Source, horizon time.Duration) (<-chan models.RawNews, <-chan error) {
			out := make(chan models.RawNews)
			errs := make(chan error, 1)

			go func() {
				defer close(out)
				defer close(errs)

				links, err := list(ctx, source)
				if err != nil {
					errs <- err
					return
				}

				cutoff := time.Now().Add(-horizon)
				// links are newest first; walk them backwards so the stream
				// is oldest first.
				for i := len(links) - 1; i >= 0; i-- {
					link := links[i]
					raw, err := fetchArticle(ctx, source, link)
					if err != nil {
						logger.Warn().Err(err).Str("url", link).Msg("failed to fetch article during backfill, skipping")
						continue
					}
					if !raw.PublishedAt.IsZero() && raw.PublishedAt.Before(cutoff) {
						continue
					}
					select {
					case out <- raw:
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
				}
			}()

			return out, errs
		},
	}
}

// listArticleLinks extracts and resolves every link matching selector
// against baseURL, newest-first (the listing page's document order).
func listArticleLinks(htmlBody, baseURL, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	seen := map[string]struct{}{}
	var links []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	return links, nil
}

// newLinksSince returns the prefix of links that appear before cursor in
// listing order (newest-first), or all of links if cursor isn't found —
// the listing-page equivalent of the message-channel "afterExternalID" cursor.
func newLinksSince(links []string, cursor string) []string {
	if cursor == "" {
		return links
	}
	for i, link := range links {
		if link == cursor {
			return links[:i]
		}
	}
	return links
}

func parseArticle(htmlBody, articleURL string, source *models.Source, sel Selectors, converter *md.Converter) (models.RawNews, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return models.RawNews{}, fmt.Errorf("failed to parse article page: %w", err)
	}

	title := strings.TrimSpace(doc.Find(sel.Title).First().Text())
	bodyHTML, _ := doc.Find(sel.Body).First().Html()
	text, err := converter.ConvertString(bodyHTML)
	if err != nil {
		text = doc.Find(sel.Body).First().Text()
	}

	var publishedAt time.Time
	if sel.Published != "" {
		if datetime, ok := doc.Find(sel.Published).First().Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, datetime); err == nil {
				publishedAt = t
			}
		}
	}
	if publishedAt.IsZero() {
		publishedAt = time.Now()
	}

	var images []models.RawImage
	doc.Find(sel.Body).Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			alt, _ := s.Attr("alt")
			images = append(images, models.RawImage{URL: src, AltText: alt})
		}
	})

	if title == "" {
		return models.RawNews{}, &common.DataValidationError{Field: "title", Reason: "empty after extraction from " + articleURL}
	}

	return models.RawNews{
		SourceID:    source.ID,
		ExternalID:  articleURL,
		Title:       title,
		Text:        strings.TrimSpace(text),
		HTML:        bodyHTML,
		PublishedAt: publishedAt,
		Images:      images,
		TrustLevel:  source.TrustLevel,
	}, nil
}
