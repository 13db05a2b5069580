package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lcalzada-xor/vmap/internal/adapters/ingest"
	"github.com/lcalzada-xor/vmap/internal/adapters/reporting"
	"github.com/lcalzada-xor/vmap/internal/adapters/storage"
	webserver "github.com/lcalzada-xor/vmap/internal/adapters/web/server"
	"github.com/lcalzada-xor/vmap/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/vmap/internal/config"
	"github.com/lcalzada-xor/vmap/internal/core/services/scoring"
	"github.com/lcalzada-xor/vmap/internal/core/services/unify"
	"github.com/lcalzada-xor/vmap/internal/telemetry"
)

// Application is the facade over the whole system: pipeline, storage, web
// server and the websocket push channel.
type Application struct {
	Config    *config.Config
	Pipeline  *unify.Pipeline
	Storage   *storage.SQLiteAdapter
	WSManager *websocket.Manager
	WebServer *webserver.Server
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

func (app *Application) bootstrap() error {
	telemetry.InitMetrics()

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.Storage = store

	scorer, err := scoring.NewScorer(app.Config.Weights)
	if err != nil {
		return err
	}

	app.WSManager = websocket.NewManager()

	reader := ingest.NewReader(app.Config.MinSignatureMatches)
	app.Pipeline = unify.NewPipeline(reader, scorer,
		unify.WithStorage(store),
		unify.WithNotifier(app.WSManager),
	)

	app.WebServer = webserver.NewServer(
		app.Config.Addr,
		app.Config.StaticDir,
		app.Pipeline,
		store,
		app.WSManager,
		reporting.NewPDFExporter(),
	)
	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	if dir := filepath.Dir(app.Config.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	return store, nil
}

// Run starts the web server and blocks until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("starting vmap", "addr", app.Config.Addr, "db", app.Config.DBPath)

	err := app.WebServer.Run(ctx)

	if closeErr := app.Storage.Close(); closeErr != nil {
		slog.Error("storage close error", "error", closeErr)
	}
	return err
}
