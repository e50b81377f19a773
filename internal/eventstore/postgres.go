package eventstore

import (
	"context"
	"fmt"

	"github.com/medvault/dlt-registry/pkg/database"
)

// PostgresSink archives events into the ledger_events table
type PostgresSink struct {
	db *database.DB
}

// NewPostgresSink creates a sink over an established connection, ensuring
// the schema exists
func NewPostgresSink(ctx context.Context, db *database.DB) (*PostgresSink, error) {
	if err := db.CreateSchema(ctx); err != nil {
		return nil, err
	}
	return &PostgresSink{db: db}, nil
}

// Append implements Sink
func (s *PostgresSink) Append(ctx context.Context, event StoredEvent) error {
	const query = `
		INSERT INTO ledger_events (transaction_id, event_name, payload, emitted_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.db.ExecContext(ctx, query, event.TxID, event.Name, []byte(event.Payload), event.EmittedAt); err != nil {
		return fmt.Errorf("failed to append ledger event: %w", err)
	}
	return nil
}

// Close implements Sink. The connection is owned by the caller and stays open.
func (s *PostgresSink) Close() error {
	return nil
}
