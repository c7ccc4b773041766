package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/models"
)

type indexRequest struct {
	method string
	path   string
	body   []byte
}

func newFakeElasticsearch(t *testing.T, status int) (*elasticsearch.Client, func() []indexRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []indexRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, indexRequest{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(server.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	return es, func() []indexRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]indexRequest(nil), requests...)
	}
}

func testPlan() *models.Plan {
	return &models.Plan{
		ID:           "plan-42",
		ProjectID:    "proj-1",
		Title:        "Bean Box - Business Plan",
		Status:       models.PlanStatusCompleted,
		BusinessIdea: "coffee subscription box",
		Sections:     models.SectionSet{models.SectionExecutiveSummary: "<p>summary</p>"},
		UpdatedAt:    time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}
}

func TestPlanIndexer_IndexesByPlanID(t *testing.T) {
	es, requests := newFakeElasticsearch(t, http.StatusCreated)
	indexer := NewPlanIndexer(es, "", logger.NewTestLogger(t))

	require.NoError(t, indexer.OnPlanFinished(context.Background(), testPlan(), models.GenerationRequest{}))

	got := requests()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPut, got[0].method)
	assert.Equal(t, "/business-plans/_doc/plan-42", got[0].path)

	var doc Document
	require.NoError(t, json.Unmarshal(got[0].body, &doc))
	assert.Equal(t, "plan-42", doc.PlanID)
	assert.Equal(t, "completed", doc.Status)
	assert.Equal(t, "<p>summary</p>", doc.Sections[models.SectionExecutiveSummary])
}

func TestPlanIndexer_ErrorResponse(t *testing.T) {
	es, _ := newFakeElasticsearch(t, http.StatusBadRequest)
	indexer := NewPlanIndexer(es, "plans", logger.NewNoOpLogger())

	err := indexer.OnPlanFinished(context.Background(), testPlan(), models.GenerationRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIndexing))
	assert.Contains(t, err.Error(), "plan-42")
}

func TestPlanIndexer_Name(t *testing.T) {
	assert.Equal(t, "elasticsearch", NewPlanIndexer(nil, "", logger.NewNoOpLogger()).Name())
}
