package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/lcalzada-xor/vmap/internal/core/ports"
)

// DatasetHandler serves persisted dataset history.
type DatasetHandler struct {
	Storage ports.Storage
}

// NewDatasetHandler creates a new DatasetHandler.
func NewDatasetHandler(storage ports.Storage) *DatasetHandler {
	return &DatasetHandler{Storage: storage}
}

// HandleList returns dataset headers, newest first, without findings.
func (h *DatasetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.Storage.ListDatasets(r.Context())
	if err != nil {
		slog.Error("dataset list failed", "error", err)
		respondError(w, http.StatusInternalServerError, "dataset list failed")
		return
	}
	respondJSON(w, http.StatusOK, datasets)
}

// HandleGet returns one dataset with its findings.
func (h *DatasetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ds, err := h.Storage.GetDataset(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "dataset not found")
			return
		}
		slog.Error("dataset load failed", "dataset_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "dataset load failed")
		return
	}
	respondJSON(w, http.StatusOK, ds)
}
