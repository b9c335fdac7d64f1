package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feedlake/social-crawler/internal/crawl"
	"github.com/feedlake/social-crawler/internal/dispatcher"
	"github.com/feedlake/social-crawler/internal/id/uuid"
	qmemory "github.com/feedlake/social-crawler/internal/queue/memory"
	rmemory "github.com/feedlake/social-crawler/internal/results/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestServer(t *testing.T) (*Server, *qmemory.Queue, *rmemory.Store) {
	t.Helper()
	q := qmemory.New(16)
	results := rmemory.New()
	d := dispatcher.New(q, uuid.New(), fixedClock{now: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)}, zap.NewNop())
	return NewServer(d, results, zap.NewNop()), q, results
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSubmitBatch(t *testing.T) {
	t.Parallel()

	s, q, _ := newTestServer(t)
	body := `{"targets":["alice","bob"],"date_range":{"since":"2026-08-01","until":"2026-08-20"},"storage":"minio"}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/batches", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Tasks []crawl.TaskHandle `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, crawl.Target("alice"), resp.Tasks[0].Target)
	assert.NotEmpty(t, resp.Tasks[0].TaskID)

	// The batch actually landed on the queue.
	item, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resp.Tasks[0].TaskID, item.TaskID)
	assert.Equal(t, "minio", item.Storage)
}

func TestSubmitBatch_BadInput(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"targets": [`},
		{"bad since", `{"targets":["a"],"date_range":{"since":"nope","until":"2026-08-20"}}`},
		{"bad until", `{"targets":["a"],"date_range":{"since":"2026-08-01","until":"20/08/2026"}}`},
		{"inverted window", `{"targets":["a"],"date_range":{"since":"2026-08-20","until":"2026-08-01"}}`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/batches", strings.NewReader(tc.body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
	}
}

func TestGetResult(t *testing.T) {
	t.Parallel()

	s, _, results := newTestServer(t)
	stored := crawl.WorkResult{TaskID: "task-1", Target: "alice", PostsFetched: 2, MediaFetched: 1}
	require.NoError(t, results.Put(context.Background(), stored))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/results/task-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got crawl.WorkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, stored, got)
}

func TestGetResult_NotFound(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/results/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
