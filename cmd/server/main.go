/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the condominium billing engine server.
  Handles configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, set up logging
  2. Initialize SQLite store
  3. Load billing settings (fee + exchange rates) from JSON
  4. Create the billing service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: billing.db)
             Use ":memory:" for an in-memory database
  -settings  Path to the billing settings JSON file
  -admin     Owner ID that receives admin copies of notifications

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/billing.db" -settings="./settings.json"
  ./server -db=":memory:" -port=3000

ENVIRONMENT:
  LOG_LEVEL  debug | info | warn | error (default info)

SEE ALSO:
  - api/server.go: Router configuration
  - billing/service.go: Orchestration layer
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/condoflow/billing-engine/api"
	"github.com/condoflow/billing-engine/billing"
	"github.com/condoflow/billing-engine/logging"
	"github.com/condoflow/billing-engine/settings"
	"github.com/condoflow/billing-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "billing.db", "SQLite database path")
	settingsPath := flag.String("settings", "settings.json", "billing settings JSON file")
	adminID := flag.String("admin", "", "owner id receiving admin notification copies")
	flag.Parse()

	log := logging.Setup()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Billing settings: fee and exchange rates
	provider, err := settings.LoadFile(*settingsPath)
	if err != nil {
		log.Error("failed to load settings", "path", *settingsPath, "error", err)
		os.Exit(1)
	}

	// Service and API wiring
	svc := billing.NewService(store, provider,
		billing.WithMetrics(billing.NewMetrics(prometheus.DefaultRegisterer)),
		billing.WithLogger(log),
		billing.WithAdminRecipient(*adminID),
	)
	handler := api.NewHandler(svc, store)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
