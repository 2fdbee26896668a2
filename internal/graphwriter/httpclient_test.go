package graphwriter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
)

func TestMergeNode_PostsToNodesMergeEndpoint(t *testing.T) {
	var gotPath string
	var gotBody mergeNodeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(common.GraphStoreConfig{BaseURL: server.URL}, arbor.NewLogger())
	err := client.MergeNode(context.Background(), LabelEvent, "ev1", map[string]any{"type": "rate_hike"})

	require.NoError(t, err)
	assert.Equal(t, "/nodes/merge", gotPath)
	assert.Equal(t, "ev1", gotBody.ID)
}

func TestMergeEdge_PostsToEdgesMergeEndpoint(t *testing.T) {
	var gotBody mergeEdgeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(common.GraphStoreConfig{BaseURL: server.URL}, arbor.NewLogger())
	err := client.MergeEdge(context.Background(), LabelEvent, "ev1", RelCauses, LabelEvent, "ev2", map[string]any{"kind": "hypothesis"})

	require.NoError(t, err)
	assert.Equal(t, RelCauses, gotBody.EdgeType)
	assert.Equal(t, "ev2", gotBody.ToID)
}

func TestMergeNode_RetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(common.GraphStoreConfig{BaseURL: server.URL}, arbor.NewLogger())
	err := client.MergeNode(context.Background(), LabelEvent, "ev1", nil)

	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestMergeNode_DoesNotRetryOn4xx(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewHTTPClient(common.GraphStoreConfig{BaseURL: server.URL}, arbor.NewLogger())
	err := client.MergeNode(context.Background(), LabelEvent, "ev1", nil)

	assert.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}
