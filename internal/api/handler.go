package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/domalend/oracle/internal/domain"
	"github.com/domalend/oracle/internal/history"
	"github.com/domalend/oracle/internal/worker"
)

// StatsProvider exposes the process-local run statistics.
type StatsProvider interface {
	Snapshot() domain.RunStatistics
}

// RunStore lists persisted cycle runs.
type RunStore interface {
	List(ctx context.Context, pipeline string, limit int) ([]history.Run, error)
	Get(ctx context.Context, id int64) (*history.Run, error)
}

// Handler provides HTTP endpoints for the status API.
type Handler struct {
	stats     StatsProvider
	runs      RunStore // nil when no database is configured
	pipelines map[string]worker.Pipeline
	started   time.Time
}

// NewHandler creates a new API handler.
func NewHandler(stats StatsProvider, runs RunStore, pipelines ...worker.Pipeline) *Handler {
	byName := make(map[string]worker.Pipeline, len(pipelines))
	for _, p := range pipelines {
		byName[p.Name()] = p
	}
	return &Handler{stats: stats, runs: runs, pipelines: byName, started: time.Now()}
}

type healthResponse struct {
	Status      string    `json:"status"`
	Uptime      string    `json:"uptime"`
	LastRunTime time.Time `json:"lastRunTime"`
	LastError   string    `json:"lastError,omitempty"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	s := h.stats.Snapshot()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Uptime:      time.Since(h.started).Truncate(time.Second).String(),
		LastRunTime: s.LastRunTime,
		LastError:   s.LastError,
	})
}

// GetStats handles GET /api/v1/stats.
func (h *Handler) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}

// ListRuns handles GET /api/v1/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not enabled")
		return
	}

	const maxLimit = 500
	limit := 30
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}

	runs, err := h.runs.List(r.Context(), r.URL.Query().Get("pipeline"), limit)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /api/v1/runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not enabled")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		slog.Error("failed to get run", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type cycleResponse struct {
	domain.CycleReport
	Error string `json:"error,omitempty"`
}

// TriggerCycle handles POST /api/v1/cycles/{pipeline}.
func (h *Handler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pipelines[r.PathValue("pipeline")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pipeline")
		return
	}

	// Cycles run to completion even if the client disconnects.
	report, err := p.RunCycle(context.WithoutCancel(r.Context()))
	if errors.Is(err, worker.ErrCycleInProgress) {
		writeError(w, http.StatusConflict, "cycle already in progress")
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, cycleResponse{CycleReport: report, Error: report.ErrMessage()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
