/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the kidpoints server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env file, environment, flags)
  2. Open the store for the configured driver
  3. Build the recorder, metrics and API handler
  4. Start the balance cache audit
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -env-file  .env file to load before reading the environment (default: .env)
  -port      HTTP server port, overrides KIDPOINTS_PORT
  -db        SQLite database path, overrides KIDPOINTS_DB_PATH
             Use ":memory:" for an in-memory database

ENVIRONMENT:
  See config/config.go for every KIDPOINTS_* key.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the audit scheduler
  4. Close the database connection

EXAMPLES:
  # SQLite file database
  ./server -db="./data/kidpoints.db"

  # Throwaway in-memory store
  KIDPOINTS_DB_DRIVER=memory ./server

  # Shared PostgreSQL
  KIDPOINTS_DB_DRIVER=postgres DATABASE_URL=postgres://... ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Configuration keys
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/warp/kidpoints/api"
	"github.com/warp/kidpoints/config"
	"github.com/warp/kidpoints/metrics"
	"github.com/warp/kidpoints/points"
	"github.com/warp/kidpoints/points/store"
	"github.com/warp/kidpoints/store/postgres"
	"github.com/warp/kidpoints/store/sqlite"
)

func main() {
	// Flags
	envFile := flag.String("env-file", ".env", "Environment file to load")
	port := flag.Int("port", 0, "HTTP server port (overrides KIDPOINTS_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides KIDPOINTS_DB_PATH)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	// Initialize store
	st, closer, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer closer.Close()

	// Wire the engine
	m := metrics.New()
	recorder := points.NewRecorder(st)
	recorder.RequireApproval = cfg.RequireApproval
	recorder.Observer = m

	handler := api.NewHandler(st, recorder)
	handler.DefaultTimezone = cfg.DefaultTimezone
	handler.Audit.Interval = cfg.AuditInterval
	handler.Audit.Observer = m
	if err := handler.Audit.Start(); err != nil {
		log.Fatalf("Failed to start balance audit: %v", err)
	}

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        m.Handler(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d (store: %s)", cfg.Port, cfg.DBDriver)
		log.Printf("📊 API available at http://localhost:%d/api", cfg.Port)
		log.Printf("📈 Metrics at http://localhost:%d/metrics", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	handler.Audit.Stop()

	log.Println("Server stopped")
}

// openStore returns the store for cfg.DBDriver and what to close on exit.
func openStore(cfg config.Config) (points.Store, io.Closer, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		s, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.DriverMemory:
		log.Println("⚠️  Using in-memory store, data is lost on exit")
		return store.NewMemory(), io.NopCloser(nil), nil
	default:
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
}
