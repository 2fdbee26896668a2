// Package graphwriter is the Graph Writer (C12): it mirrors events and
// causal/impact edges into the external graph store over HTTP, using
// idempotent MERGE semantics so re-processing a News item never duplicates
// a node or edge (§4.10). The base client shape — options, bounded
// *http.Client, structured APIError — follows the teacher's
// internal/services/navexa.Client; retry on transient failure reuses
// internal/adapters/backoff.Policy rather than a second backoff
// implementation.
package graphwriter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/adapters/backoff"
	"github.com/cegradar/cegradar/internal/common"
)

// DefaultTimeout bounds a single merge request.
const DefaultTimeout = 30 * time.Second

// MaxAttempts is the number of tries (1 initial + retries) before MergeNode
// or MergeEdge gives up and returns the last error.
const MaxAttempts = 3

// HTTPClient is the interfaces.GraphStore implementation: a REST client
// issuing idempotent merge requests to an external graph database's
// Cypher-over-HTTP (or equivalent) endpoint. The server itself is out of
// scope; this type only owns the wire contract.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	retry      *backoff.Policy
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying *http.Client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.httpClient = c }
}

// NewHTTPClient creates an HTTPClient from GraphStoreConfig.
func NewHTTPClient(cfg common.GraphStoreConfig, logger arbor.ILogger, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
		retry:      backoff.NewPolicy(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// APIError represents a non-2xx response from the graph store.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph store error: %s (status %d, endpoint %s)", e.Message, e.StatusCode, e.Endpoint)
}

type mergeNodeRequest struct {
	Label string         `json:"label"`
	ID    string         `json:"id"`
	Props map[string]any `json:"props"`
}

type mergeEdgeRequest struct {
	FromLabel string         `json:"from_label"`
	FromID    string         `json:"from_id"`
	EdgeType  string         `json:"edge_type"`
	ToLabel   string         `json:"to_label"`
	ToID      string         `json:"to_id"`
	Props     map[string]any `json:"props"`
}

// MergeNode upserts a single node by (label, id), replacing props on match.
func (h *HTTPClient) MergeNode(ctx context.Context, label, id string, props map[string]any) error {
	return h.postWithRetry(ctx, "/nodes/merge", mergeNodeRequest{Label: label, ID: id, Props: props})
}

// MergeEdge upserts a single typed edge between two existing nodes,
// replacing its properties wholesale on match (never partial-merged).
func (h *HTTPClient) MergeEdge(ctx context.Context, fromLabel, fromID, edgeType, toLabel, toID string, props map[string]any) error {
	return h.postWithRetry(ctx, "/edges/merge", mergeEdgeRequest{
		FromLabel: fromLabel,
		FromID:    fromID,
		EdgeType:  edgeType,
		ToLabel:   toLabel,
		ToID:      toID,
		Props:     props,
	})
}

func (h *HTTPClient) postWithRetry(ctx context.Context, path string, body any) error {
	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.retry.Delay(attempt - 1)):
			}
		}

		lastErr = h.post(ctx, path, body)
		if lastErr == nil {
			return nil
		}

		var apiErr *APIError
		if ae, ok := lastErr.(*APIError); ok {
			apiErr = ae
		}
		if apiErr != nil && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return lastErr
		}
		h.logger.Warn().Err(lastErr).Str("path", path).Int("attempt", attempt+1).Msg("graphwriter: merge failed, retrying")
	}
	return lastErr
}

func (h *HTTPClient) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("graphwriter: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("graphwriter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphwriter: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: string(msg), Endpoint: path}
	}
	return nil
}
