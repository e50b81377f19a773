// Package memledger provides a deterministic in-memory world state that
// implements the Fabric chaincode stub surface. The registry gateway runs
// the contracts against it in-process, and the contract unit tests use it
// as their test double: the clock and the client identity are settable, and
// emitted events are captured per transaction.
package memledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger is a shared, serialized world state. Mutating transactions are
// expected to be sequenced by the caller (the gateway runtime holds a single
// writer lock); the internal mutex only guards map access so that read-only
// transactions can run against a consistent snapshot.
type Ledger struct {
	mu    sync.RWMutex
	state map[string][]byte

	// Now supplies transaction timestamps. Tests override it to simulate
	// clock advance without sleeping.
	Now func() time.Time
}

// New creates an empty ledger using the wall clock
func New() *Ledger {
	return &Ledger{
		state: make(map[string][]byte),
		Now:   time.Now,
	}
}

// NewTx mints a transaction context for a single contract invocation. The
// caller principal becomes the client identity; the transaction timestamp is
// fixed at creation so every read of "now" inside the invocation agrees.
func (l *Ledger) NewTx(caller string) *TxContext {
	return &TxContext{
		stub: &Stub{
			ledger: l,
			txID:   uuid.New().String(),
			ts:     l.Now(),
		},
		id: NewClientIdentity(caller, "MedVaultMSP"),
	}
}

// NewTxAt mints a transaction context with an explicit timestamp. Used by
// tests that exercise grant expiry.
func (l *Ledger) NewTxAt(caller string, at time.Time) *TxContext {
	ctx := l.NewTx(caller)
	ctx.stub.ts = at
	return ctx
}

func (l *Ledger) get(key string) []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state[key]
}

func (l *Ledger) put(key string, value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	l.state[key] = cp
}

func (l *Ledger) delete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.state, key)
}

// snapshotRange returns the keys in [startKey, endKey) in lexical order.
// Empty bounds are unbounded, matching Fabric range-query semantics.
func (l *Ledger) snapshotRange(startKey, endKey string) ([]string, [][]byte) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var keys []string
	for k := range l.state {
		if startKey != "" && k < startKey {
			continue
		}
		if endKey != "" && k >= endKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = l.state[k]
	}
	return keys, values
}
