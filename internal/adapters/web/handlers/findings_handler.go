package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"github.com/lcalzada-xor/vmap/internal/core/ports"
	"github.com/lcalzada-xor/vmap/internal/core/services/unify"
)

// FindingsHandler serves the current unified dataset.
type FindingsHandler struct {
	Pipeline ports.Pipeline
}

// NewFindingsHandler creates a new FindingsHandler.
func NewFindingsHandler(pipeline ports.Pipeline) *FindingsHandler {
	return &FindingsHandler{Pipeline: pipeline}
}

// HandleFindings returns the current findings as JSON. Severity and status
// filters narrow the list without changing the published dataset.
func (h *FindingsHandler) HandleFindings(w http.ResponseWriter, r *http.Request) {
	ds := h.Pipeline.Current()
	if ds == nil {
		respondJSON(w, http.StatusOK, []domain.Finding{})
		return
	}

	findings := ds.Findings
	if severity := r.URL.Query().Get("severity"); severity != "" {
		findings = filterSeverity(findings, severity)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		findings = filterStatus(findings, status)
	}

	respondJSON(w, http.StatusOK, findings)
}

// HandleExport downloads the current dataset, CSV by default.
func (h *FindingsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ds := h.Pipeline.Current()
	if ds == nil {
		respondError(w, http.StatusNotFound, "no dataset published yet")
		return
	}

	switch r.URL.Query().Get("format") {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=vmap_findings.json")
		respondJSON(w, http.StatusOK, ds.Findings)
	default:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=vmap_findings.csv")
		if err := unify.WriteCSV(w, ds.Findings); err != nil {
			slog.Error("CSV export error", "error", err)
		}
	}
}

func filterSeverity(findings []domain.Finding, raw string) []domain.Finding {
	want := domain.ClassifySeverity(raw)
	out := make([]domain.Finding, 0, len(findings))
	for _, f := range findings {
		if f.NormalizedSeverity == want {
			out = append(out, f)
		}
	}
	return out
}

func filterStatus(findings []domain.Finding, raw string) []domain.Finding {
	want := domain.ParseStatus(strings.TrimSpace(raw))
	out := make([]domain.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Status == want {
			out = append(out, f)
		}
	}
	return out
}
