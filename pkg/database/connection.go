package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/medvault/dlt-registry/pkg/config"
	"github.com/medvault/dlt-registry/pkg/logger"
)

// DB represents the event store database connection
type DB struct {
	*sql.DB
	config *config.DatabaseConfig
	logger *logger.Logger
}

// NewConnection creates a new database connection
func NewConnection(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	connStr := buildConnectionString(cfg)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		config: cfg,
		logger: log,
	}

	log.Info("Database connection established successfully")
	return db, nil
}

// NewFromSQL wraps an already-open connection. Used by tests and by tooling
// that manages the connection lifecycle itself.
func NewFromSQL(sqlDB *sql.DB, log *logger.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		logger: log,
	}
}

// buildConnectionString constructs the PostgreSQL connection string
func buildConnectionString(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

// Health checks the database connection health
func (db *DB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}

// CreateSchema creates the ledger event archive schema
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating event store schema...")

	statements := []string{
		createLedgerEventsTable,
		createLedgerEventsIndexes,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create event store schema: %w", err)
		}
	}

	db.logger.Info("Event store schema created successfully")
	return nil
}

const (
	createLedgerEventsTable = `
		CREATE TABLE IF NOT EXISTS ledger_events (
			id BIGSERIAL PRIMARY KEY,
			transaction_id VARCHAR(64) NOT NULL,
			event_name VARCHAR(64) NOT NULL,
			payload JSONB NOT NULL,
			emitted_at BIGINT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`

	createLedgerEventsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_ledger_events_tx ON ledger_events (transaction_id);
		CREATE INDEX IF NOT EXISTS idx_ledger_events_name ON ledger_events (event_name);`
)
