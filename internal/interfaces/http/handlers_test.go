package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getbeton/accountpulse/internal/detect"
	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/persistence/memory"
)

func newTestRouter(t *testing.T, store *memory.Store) http.Handler {
	t.Helper()
	handlers := NewHandlers(detect.NewRegistry(), store.Scores(), store.Aggregates(), "test")

	router := mux.NewRouter()
	router.HandleFunc("/health", handlers.Health).Methods("GET")
	router.HandleFunc("/detectors", handlers.Detectors).Methods("GET")
	router.HandleFunc("/accounts/{account_id}/scores", handlers.AccountScores).Methods("GET")
	router.HandleFunc("/workspaces/{workspace_id}/aggregates/{signal_type}", handlers.Aggregate).Methods("GET")
	router.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	return router
}

func doGet(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, memory.NewStore())
	rec := doGet(t, router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 20, resp.Detectors)
	assert.NotEmpty(t, resp.System.GoVersion)
}

func TestDetectorsEndpoint(t *testing.T) {
	router := newTestRouter(t, memory.NewStore())

	rec := doGet(t, router, "/detectors")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count     int           `json:"count"`
		Detectors []detect.Meta `json:"detectors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 20, resp.Count)

	rec = doGet(t, router, "/detectors?category=churn_risk")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 8, resp.Count)
	for _, meta := range resp.Detectors {
		assert.Equal(t, domain.CategoryChurnRisk, meta.Category)
	}
}

func TestAccountScoresEndpoint(t *testing.T) {
	store := memory.NewStore()
	router := newTestRouter(t, store)

	rec := doGet(t, router, "/accounts/acc-1/scores")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, store.Scores().Upsert(context.Background(), domain.HeuristicScore{
		AccountID:    "acc-1",
		WorkspaceID:  "ws-1",
		ScoreType:    domain.ScoreExpansion,
		ScoreValue:   72.5,
		CalculatedAt: time.Now(),
	}))

	rec = doGet(t, router, "/accounts/acc-1/scores")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		AccountID string                  `json:"account_id"`
		Scores    []domain.HeuristicScore `json:"scores"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Scores, 1)
	assert.Equal(t, domain.ScoreExpansion, resp.Scores[0].ScoreType)
	assert.InDelta(t, 72.5, resp.Scores[0].ScoreValue, 0.001)
}

func TestAggregateEndpoint(t *testing.T) {
	store := memory.NewStore()
	router := newTestRouter(t, store)

	rec := doGet(t, router, "/workspaces/ws-1/aggregates/usage_spike")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, store.Aggregates().Upsert(context.Background(), domain.SignalAggregate{
		WorkspaceID: "ws-1",
		SignalType:  "usage_spike",
		TotalCount:  7,
	}))

	rec = doGet(t, router, "/workspaces/ws-1/aggregates/usage_spike")
	require.Equal(t, http.StatusOK, rec.Code)
	var agg domain.SignalAggregate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agg))
	assert.Equal(t, 7, agg.TotalCount)
}

func TestNotFound(t *testing.T) {
	router := newTestRouter(t, memory.NewStore())
	rec := doGet(t, router, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDetachedStoresReport503(t *testing.T) {
	handlers := NewHandlers(detect.NewRegistry(), nil, nil, "test")
	router := mux.NewRouter()
	router.HandleFunc("/accounts/{account_id}/scores", handlers.AccountScores).Methods("GET")

	rec := doGet(t, router, "/accounts/acc-1/scores")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
