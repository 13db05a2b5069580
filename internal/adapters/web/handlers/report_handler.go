package handlers

import (
	"log/slog"
	"net/http"

	"github.com/lcalzada-xor/vmap/internal/adapters/reporting"
	"github.com/lcalzada-xor/vmap/internal/core/ports"
)

// ReportHandler renders downloadable reports over the current dataset.
type ReportHandler struct {
	Pipeline    ports.Pipeline
	PDFExporter *reporting.PDFExporter
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(pipeline ports.Pipeline, exporter *reporting.PDFExporter) *ReportHandler {
	return &ReportHandler{Pipeline: pipeline, PDFExporter: exporter}
}

// HandleSummary downloads the PDF risk summary of the current dataset.
func (h *ReportHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ds := h.Pipeline.Current()
	if ds == nil {
		respondError(w, http.StatusNotFound, "no dataset published yet")
		return
	}

	pdf, err := h.PDFExporter.ExportSummary(ds)
	if err != nil {
		slog.Error("PDF generation failed", "dataset_id", ds.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "report generation failed")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=vmap_summary.pdf")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		slog.Error("PDF write failed", "error", err)
	}
}
