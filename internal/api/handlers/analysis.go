// Package handlers holds the HTTP handlers for the analysis API
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/internal/persist"
	"github.com/wonny/macrolens/backend/internal/provider"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

// RunStore is the slice of the run archive the API reads
type RunStore interface {
	LatestRun(ctx context.Context) (*contracts.RunState, error)
	RunByID(ctx context.Context, runID string) (*contracts.RunState, error)
	RecentAlerts(ctx context.Context, limit int) ([]contracts.Alert, error)
}

// HealthProber probes the registered provider adapters
type HealthProber interface {
	Healthchecks(ctx context.Context) []provider.HealthStatus
}

// AnalysisHandler serves archived runs and provider health
type AnalysisHandler struct {
	runs   RunStore
	probe  HealthProber
	logger *logger.Logger
}

// NewAnalysisHandler creates the handler
func NewAnalysisHandler(runs RunStore, probe HealthProber, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		runs:   runs,
		probe:  probe,
		logger: log.WithField("component", "api"),
	}
}

// ProviderHealth probes every adapter and reports per-adapter status
// GET /api/providers/health
func (h *AnalysisHandler) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	statuses := h.probe.Healthchecks(ctx)

	healthy := true
	for _, s := range statuses {
		if !s.Healthy {
			healthy = false
			break
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"healthy":   healthy,
		"providers": statuses,
	})
}

// LatestRun returns the most recent archived run
// GET /api/runs/latest
func (h *AnalysisHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	state, err := h.runs.LatestRun(r.Context())
	if err != nil {
		h.respondRunError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// RunByID returns one archived run
// GET /api/runs/{id}
func (h *AnalysisHandler) RunByID(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	state, err := h.runs.RunByID(r.Context(), runID)
	if err != nil {
		h.respondRunError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// RecentAlerts returns the latest triggered alerts across runs
// GET /api/alerts?limit=20
func (h *AnalysisHandler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			respondJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be an integer between 1 and 200",
			})
			return
		}
		limit = n
	}

	alerts, err := h.runs.RecentAlerts(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read alerts")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive unavailable"})
		return
	}
	if alerts == nil {
		alerts = []contracts.Alert{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (h *AnalysisHandler) respondRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, persist.ErrNoRuns) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	h.logger.WithError(err).Error("Failed to read run archive")
	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive unavailable"})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
