package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"github.com/lcalzada-xor/vmap/internal/core/ports"
)

// maxUploadBytes bounds one uploaded scanner export.
const maxUploadBytes = 256 << 20

// UploadHandler ingests scanner export files.
type UploadHandler struct {
	Pipeline ports.Pipeline
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(pipeline ports.Pipeline) *UploadHandler {
	return &UploadHandler{Pipeline: pipeline}
}

// HandleUpload accepts a multipart upload under the "file" field, runs it
// through the pipeline and returns the full process result: unified data,
// the regenerated CSV, the detected scanner and the upload summary.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	result, err := h.Pipeline.Process(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			respondJSON(w, http.StatusUnsupportedMediaType, result)
			return
		}
		slog.Error("upload processing failed", "filename", header.Filename, "error", err)
		respondJSON(w, http.StatusInternalServerError, result)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
