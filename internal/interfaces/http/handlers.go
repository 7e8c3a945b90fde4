package http

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"github.com/getbeton/accountpulse/internal/detect"
	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/persistence"
)

// Handlers serves the operational endpoints over the engine's stores.
type Handlers struct {
	registry   *detect.Registry
	scores     persistence.ScoreStore
	aggregates persistence.AggregateStore
	version    string
	startTime  time.Time
}

// NewHandlers wires the endpoint handlers. scores and aggregates may be nil
// when no database is attached; the endpoints then report 503.
func NewHandlers(registry *detect.Registry, scores persistence.ScoreStore,
	aggregates persistence.AggregateStore, version string) *Handlers {
	return &Handlers{
		registry:   registry,
		scores:     scores,
		aggregates: aggregates,
		version:    version,
		startTime:  time.Now(),
	}
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Uptime    string     `json:"uptime"`
	Version   string     `json:"version"`
	Detectors int        `json:"detectors"`
	System    SystemInfo `json:"system"`
}

// SystemInfo carries basic runtime stats.
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAllocBytes uint64 `json:"mem_alloc_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// Health reports process status.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Detectors: len(h.registry.All()),
		System: SystemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			MemAllocBytes: mem.Alloc,
			NumGC:         mem.NumGC,
		},
	})
}

// Detectors lists the registered detector catalog. ?category=expansion
// filters.
func (h *Handlers) Detectors(w http.ResponseWriter, r *http.Request) {
	category := domain.SignalCategory(r.URL.Query().Get("category"))
	detectors := h.registry.ByCategory(category)

	out := make([]detect.Meta, 0, len(detectors))
	for _, d := range detectors {
		out = append(out, detect.Meta{Name: d.Name, Category: d.Category, Description: d.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(out),
		"detectors": out,
	})
}

// AccountScores returns the stored score snapshots for one account.
func (h *Handlers) AccountScores(w http.ResponseWriter, r *http.Request) {
	if h.scores == nil {
		writeError(w, http.StatusServiceUnavailable, "score store not attached")
		return
	}
	accountID := mux.Vars(r)["account_id"]

	out := make([]domain.HeuristicScore, 0, 3)
	for _, scoreType := range []domain.ScoreType{domain.ScoreHealth, domain.ScoreExpansion, domain.ScoreChurnRisk} {
		score, err := h.scores.Get(r.Context(), accountID, scoreType)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if score != nil {
			out = append(out, *score)
		}
	}
	if len(out) == 0 {
		writeError(w, http.StatusNotFound, "no scores for account "+accountID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"scores":     out,
	})
}

// Aggregate returns the performance rollup for one signal type.
func (h *Handlers) Aggregate(w http.ResponseWriter, r *http.Request) {
	if h.aggregates == nil {
		writeError(w, http.StatusServiceUnavailable, "aggregate store not attached")
		return
	}
	vars := mux.Vars(r)

	agg, err := h.aggregates.Get(r.Context(), vars["workspace_id"], vars["signal_type"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if agg == nil {
		writeError(w, http.StatusNotFound, "no aggregate for signal type "+vars["signal_type"])
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// NotFound is the fallback handler.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, http.StatusNotFound, "unknown endpoint "+r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
