package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/medvault/dlt-registry/internal/eventstore"
	"github.com/medvault/dlt-registry/internal/gateway"
	"github.com/medvault/dlt-registry/pkg/config"
	"github.com/medvault/dlt-registry/pkg/database"
	"github.com/medvault/dlt-registry/pkg/logger"
	"github.com/medvault/dlt-registry/pkg/monitoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)

	sink, db, cleanup, err := buildEventSink(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize event sink")
	}
	defer cleanup()

	service, err := gateway.NewService(cfg, sink, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize gateway service")
	}

	if db != nil {
		service.RegisterHealthChecker("event_store", monitoring.NewDatabaseHealthChecker(db.DB))
	}

	go func() {
		if err := service.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Gateway server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down registry gateway...")

	if err := service.Stop(); err != nil {
		logger.WithError(err).Error("Failed to shutdown server gracefully")
		os.Exit(1)
	}

	logger.Info("Registry gateway stopped")
}

// buildEventSink prefers the Postgres archive when a database host is
// configured; otherwise events stay in process memory. The returned DB is
// nil for the in-memory sink.
func buildEventSink(cfg *config.Config, logger *logger.Logger) (eventstore.Sink, *database.DB, func(), error) {
	if cfg.Database.Host == "" {
		logger.WithComponent("eventstore").Info("No event store database configured, using in-memory sink")
		return eventstore.NewMemorySink(), nil, func() {}, nil
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	sink, err := eventstore.NewPostgresSink(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	return sink, db, func() { db.Close() }, nil
}
