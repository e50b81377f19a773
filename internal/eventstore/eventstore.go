// Package eventstore archives contract events off-ledger. The ledger itself
// keeps no history beyond current state; events captured at commit time are
// the only durable account of what happened, so the gateway drains every
// committed invocation's events into a sink.
package eventstore

import (
	"context"
	"encoding/json"
)

// StoredEvent is one contract event captured from a committed invocation
type StoredEvent struct {
	TxID      string          `json:"transaction_id"`
	Name      string          `json:"event_name"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt int64           `json:"emitted_at"`
}

// Sink receives events from committed invocations
type Sink interface {
	Append(ctx context.Context, event StoredEvent) error
	Close() error
}
