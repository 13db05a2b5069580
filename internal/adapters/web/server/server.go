package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/vmap/internal/adapters/reporting"
	"github.com/lcalzada-xor/vmap/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/vmap/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/vmap/internal/core/ports"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr      string
	StaticDir string

	Pipeline  ports.Pipeline
	Storage   ports.Storage
	WSManager *websocket.Manager

	UploadHandler   *handlers.UploadHandler
	FindingsHandler *handlers.FindingsHandler
	StatsHandler    *handlers.StatsHandler
	DatasetHandler  *handlers.DatasetHandler
	ReportHandler   *handlers.ReportHandler

	srv *http.Server
}

// NewServer creates a new web server. The websocket manager is both the
// push channel to dashboard clients and the pipeline's dataset notifier.
func NewServer(addr, staticDir string, pipeline ports.Pipeline, storage ports.Storage, wsManager *websocket.Manager, pdfExporter *reporting.PDFExporter) *Server {
	return &Server{
		Addr:      addr,
		StaticDir: staticDir,
		Pipeline:  pipeline,
		Storage:   storage,
		WSManager: wsManager,

		UploadHandler:   handlers.NewUploadHandler(pipeline),
		FindingsHandler: handlers.NewFindingsHandler(pipeline),
		StatsHandler:    handlers.NewStatsHandler(pipeline),
		DatasetHandler:  handlers.NewDatasetHandler(storage),
		ReportHandler:   handlers.NewReportHandler(pipeline, pdfExporter),
	}
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails.
func (s *Server) Run(ctx context.Context) error {
	handler := SetupRoutes(s)

	// One span per request, named after the route.
	instrumented := otelhttp.NewHandler(handler, "vmap-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           instrumented,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("web server shutdown error", "error", err)
		}
	}()

	slog.Info("web server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
