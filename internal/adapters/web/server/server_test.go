package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lcalzada-xor/vmap/internal/adapters/reporting"
	"github.com/lcalzada-xor/vmap/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"gorm.io/gorm"
)

type stubPipeline struct {
	current *domain.Dataset
}

func (s *stubPipeline) Process(ctx context.Context, filename string, r io.Reader) (domain.ProcessResult, error) {
	io.Copy(io.Discard, r)
	return domain.ProcessResult{}, nil
}

func (s *stubPipeline) Current() *domain.Dataset { return s.current }

type stubStorage struct{}

func (s *stubStorage) SaveDataset(ctx context.Context, ds domain.Dataset) error { return nil }
func (s *stubStorage) GetDataset(ctx context.Context, id string) (*domain.Dataset, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubStorage) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	return []domain.Dataset{}, nil
}
func (s *stubStorage) Close() error { return nil }

func testServer() *Server {
	return NewServer(":0", "", &stubPipeline{}, &stubStorage{}, websocket.NewManager(), reporting.NewPDFExporter())
}

func TestRoutes(t *testing.T) {
	handler := SetupRoutes(testServer())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/findings", http.StatusOK},
		{http.MethodGet, "/api/export", http.StatusNotFound}, // no dataset yet
		{http.MethodGet, "/api/stats/funnel", http.StatusOK},
		{http.MethodGet, "/api/stats/overview", http.StatusOK},
		{http.MethodGet, "/api/stats/complexity", http.StatusOK},
		{http.MethodGet, "/api/datasets", http.StatusOK},
		{http.MethodGet, "/api/datasets/nope", http.StatusNotFound},
		{http.MethodGet, "/api/reports/summary", http.StatusNotFound}, // no dataset yet
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/upload", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestUploadRouteRejectsNonMultipart(t *testing.T) {
	handler := SetupRoutes(testServer())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
