package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"github.com/lcalzada-xor/vmap/internal/core/ports"
	"github.com/lcalzada-xor/vmap/internal/core/services/stats"
)

// StatsHandler serves dashboard aggregates over the current dataset.
type StatsHandler struct {
	Pipeline ports.Pipeline
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(pipeline ports.Pipeline) *StatsHandler {
	return &StatsHandler{Pipeline: pipeline}
}

func (h *StatsHandler) currentFindings() []domain.Finding {
	if ds := h.Pipeline.Current(); ds != nil {
		return ds.Findings
	}
	return nil
}

// HandleFunnel returns the severity funnel buckets.
func (h *StatsHandler) HandleFunnel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, stats.Funnel(h.currentFindings()))
}

// HandleOverview returns the headline counters.
func (h *StatsHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, stats.Overview(h.currentFindings()))
}

// HandleComplexity returns the attack-complexity distribution.
func (h *StatsHandler) HandleComplexity(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, stats.Complexity(h.currentFindings()))
}
