package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/vmap/internal/adapters/web/middleware"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	// Upload parses whole files, so it gets its own limiter.
	uploadLimiter := middleware.NewRateLimiter(30, 1*time.Minute)
	r.Handle("/api/upload",
		middleware.RateLimitMiddleware(uploadLimiter)(http.HandlerFunc(s.UploadHandler.HandleUpload))).
		Methods(http.MethodPost)

	r.HandleFunc("/api/findings", s.FindingsHandler.HandleFindings).Methods(http.MethodGet)
	r.HandleFunc("/api/export", s.FindingsHandler.HandleExport).Methods(http.MethodGet)

	r.HandleFunc("/api/stats/funnel", s.StatsHandler.HandleFunnel).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/overview", s.StatsHandler.HandleOverview).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/complexity", s.StatsHandler.HandleComplexity).Methods(http.MethodGet)

	r.HandleFunc("/api/datasets", s.DatasetHandler.HandleList).Methods(http.MethodGet)
	r.HandleFunc("/api/datasets/{id}", s.DatasetHandler.HandleGet).Methods(http.MethodGet)

	r.HandleFunc("/api/reports/summary", s.ReportHandler.HandleSummary).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.WSManager.HandleWebSocket)

	r.Handle("/metrics", promhttp.Handler())

	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}
