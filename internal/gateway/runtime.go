package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/medvault/dlt-registry/chaincode/registry/accessctl"
	"github.com/medvault/dlt-registry/chaincode/registry/identityreg"
	"github.com/medvault/dlt-registry/chaincode/registry/recordreg"
	"github.com/medvault/dlt-registry/internal/eventstore"
	"github.com/medvault/dlt-registry/pkg/logger"
	"github.com/medvault/dlt-registry/pkg/memledger"
	"github.com/medvault/dlt-registry/pkg/monitoring"
	"github.com/medvault/dlt-registry/pkg/types"
)

// Runtime hosts the three registry contracts over an in-process ledger. It
// serializes mutating invocations so each one observes and commits a
// consistent world state, mirroring per-key ordering on a real ordering
// service. Events emitted by committed invocations are drained to the sink.
type Runtime struct {
	mu sync.Mutex

	ledger     *memledger.Ledger
	identities *identityreg.Contract
	records    *recordreg.Contract
	access     *accessctl.Contract

	sink    eventstore.Sink
	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
}

// NewRuntime creates a runtime over a fresh ledger and fixes the
// administrator principal.
func NewRuntime(adminPrincipal string, sink eventstore.Sink, log *logger.Logger, metrics *monitoring.MetricsCollector) (*Runtime, error) {
	verifier := identityreg.StateVerifier{}
	rt := &Runtime{
		ledger:     memledger.New(),
		identities: identityreg.NewContract(),
		records:    recordreg.NewContract(verifier),
		access:     accessctl.NewContract(verifier),
		sink:       sink,
		logger:     log,
		metrics:    metrics,
	}

	if err := rt.identities.InitLedger(rt.ledger.NewTx(adminPrincipal), adminPrincipal); err != nil {
		return nil, err
	}
	return rt, nil
}

// invoke runs a mutating contract operation under the writer lock and, on
// success, drains its events to the sink
func (rt *Runtime) invoke(ctx context.Context, contract, operation, caller string, fn func(*memledger.TxContext) error) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	tx := rt.ledger.NewTx(caller)
	start := time.Now()
	err := fn(tx)
	duration := time.Since(start)

	if err != nil {
		code := types.ErrorCode(err)
		rt.metrics.RecordContractInvocation(contract, operation, "rejected", duration)
		rt.metrics.RecordContractRejection(contract, operation, code)
		rt.logger.ContractInvocation(ctx, contract, operation, caller, tx.TxID(), err, code)
		rt.logger.Audit(caller, operation, contract, false, map[string]interface{}{
			"transaction_id": tx.TxID(),
			"code":           code,
		})
		return err
	}

	rt.metrics.RecordContractInvocation(contract, operation, "committed", duration)
	rt.logger.ContractInvocation(ctx, contract, operation, caller, tx.TxID(), nil, "")
	rt.logger.Audit(caller, operation, contract, true, map[string]interface{}{
		"transaction_id": tx.TxID(),
	})
	rt.drainEvents(ctx, tx)
	return nil
}

// query runs a read-only contract operation; reads emit no events
func (rt *Runtime) query(contract, operation, caller string, fn func(*memledger.TxContext) error) error {
	tx := rt.ledger.NewTx(caller)
	start := time.Now()
	err := fn(tx)
	duration := time.Since(start)

	status := "committed"
	if err != nil {
		status = "rejected"
	}
	rt.metrics.RecordContractInvocation(contract, operation, status, duration)
	return err
}

func (rt *Runtime) drainEvents(ctx context.Context, tx *memledger.TxContext) {
	for _, ev := range tx.Events() {
		rt.metrics.RecordLedgerEvent(ev.Name)
		rt.logger.LedgerEvent(ctx, ev.Name, tx.TxID(), ev.Payload)

		stored := eventstore.StoredEvent{
			TxID:      tx.TxID(),
			Name:      ev.Name,
			Payload:   ev.Payload,
			EmittedAt: tx.Timestamp().Unix(),
		}
		if err := rt.sink.Append(ctx, stored); err != nil {
			rt.metrics.RecordEventSinkError("event_store")
			rt.logger.WithError(err).WithField("event", ev.Name).Error("Failed to archive ledger event")
		}
	}
}

// Identity Registry operations

func (rt *Runtime) RegisterPatient(ctx context.Context, caller, credentialHash, healthID, profileRef string) error {
	return rt.invoke(ctx, "IdentityRegistry", "RegisterPatient", caller, func(tx *memledger.TxContext) error {
		return rt.identities.RegisterPatient(tx, credentialHash, healthID, profileRef)
	})
}

func (rt *Runtime) RegisterDoctor(ctx context.Context, caller, credentialHash, doctorID, profileRef string) error {
	return rt.invoke(ctx, "IdentityRegistry", "RegisterDoctor", caller, func(tx *memledger.TxContext) error {
		return rt.identities.RegisterDoctor(tx, credentialHash, doctorID, profileRef)
	})
}

func (rt *Runtime) VerifyDoctor(ctx context.Context, caller, principal string) error {
	return rt.invoke(ctx, "IdentityRegistry", "VerifyDoctor", caller, func(tx *memledger.TxContext) error {
		return rt.identities.VerifyDoctor(tx, principal)
	})
}

func (rt *Runtime) UpdateProfile(ctx context.Context, caller, profileRef string) error {
	return rt.invoke(ctx, "IdentityRegistry", "UpdateProfile", caller, func(tx *memledger.TxContext) error {
		return rt.identities.UpdateProfile(tx, profileRef)
	})
}

func (rt *Runtime) GetIdentity(caller, principal string) (*types.Identity, error) {
	var identity *types.Identity
	err := rt.query("IdentityRegistry", "GetIdentity", caller, func(tx *memledger.TxContext) error {
		var err error
		identity, err = rt.identities.GetIdentity(tx, principal)
		return err
	})
	return identity, err
}

func (rt *Runtime) ResolveByHealthID(caller, healthID string) (string, error) {
	var principal string
	err := rt.query("IdentityRegistry", "ResolveByHealthID", caller, func(tx *memledger.TxContext) error {
		var err error
		principal, err = rt.identities.ResolveByHealthID(tx, healthID)
		return err
	})
	return principal, err
}

func (rt *Runtime) ResolveByDoctorID(caller, doctorID string) (string, error) {
	var principal string
	err := rt.query("IdentityRegistry", "ResolveByDoctorID", caller, func(tx *memledger.TxContext) error {
		var err error
		principal, err = rt.identities.ResolveByDoctorID(tx, doctorID)
		return err
	})
	return principal, err
}

func (rt *Runtime) GetAdministrator(caller string) (string, error) {
	var admin string
	err := rt.query("IdentityRegistry", "GetAdministrator", caller, func(tx *memledger.TxContext) error {
		var err error
		admin, err = rt.identities.GetAdministrator(tx)
		return err
	})
	return admin, err
}

// Record Registry operations

func (rt *Runtime) CreateRecord(ctx context.Context, caller, patient, contentHash, contentRef, recordType string) (uint64, error) {
	var id uint64
	err := rt.invoke(ctx, "RecordRegistry", "CreateRecord", caller, func(tx *memledger.TxContext) error {
		var err error
		id, err = rt.records.CreateRecord(tx, patient, contentHash, contentRef, recordType)
		return err
	})
	return id, err
}

func (rt *Runtime) ToggleVisibility(ctx context.Context, caller string, recordID uint64) error {
	return rt.invoke(ctx, "RecordRegistry", "ToggleVisibility", caller, func(tx *memledger.TxContext) error {
		return rt.records.ToggleVisibility(tx, recordID)
	})
}

func (rt *Runtime) VerifyRecord(caller string, recordID uint64, candidateHash string) (bool, error) {
	var match bool
	err := rt.query("RecordRegistry", "VerifyRecord", caller, func(tx *memledger.TxContext) error {
		var err error
		match, err = rt.records.VerifyRecord(tx, recordID, candidateHash)
		return err
	})
	return match, err
}

func (rt *Runtime) GetRecord(caller string, recordID uint64) (*types.Record, error) {
	var record *types.Record
	err := rt.query("RecordRegistry", "GetRecord", caller, func(tx *memledger.TxContext) error {
		var err error
		record, err = rt.records.GetRecord(tx, recordID)
		return err
	})
	return record, err
}

func (rt *Runtime) ListPatientRecords(caller, patient string) ([]uint64, error) {
	var ids []uint64
	err := rt.query("RecordRegistry", "ListPatientRecords", caller, func(tx *memledger.TxContext) error {
		var err error
		ids, err = rt.records.ListPatientRecords(tx, patient)
		return err
	})
	return ids, err
}

func (rt *Runtime) ListAuthorRecords(caller, author string) ([]uint64, error) {
	var ids []uint64
	err := rt.query("RecordRegistry", "ListAuthorRecords", caller, func(tx *memledger.TxContext) error {
		var err error
		ids, err = rt.records.ListAuthorRecords(tx, author)
		return err
	})
	return ids, err
}

func (rt *Runtime) ListVisiblePatientRecords(caller, patient string) ([]uint64, error) {
	var ids []uint64
	err := rt.query("RecordRegistry", "ListVisiblePatientRecords", caller, func(tx *memledger.TxContext) error {
		var err error
		ids, err = rt.records.ListVisiblePatientRecords(tx, patient)
		return err
	})
	return ids, err
}

// Access Control operations

func (rt *Runtime) GrantAccess(ctx context.Context, caller, doctor string, durationSeconds int64) error {
	return rt.invoke(ctx, "AccessControl", "GrantAccess", caller, func(tx *memledger.TxContext) error {
		return rt.access.GrantAccess(tx, doctor, durationSeconds)
	})
}

func (rt *Runtime) RevokeAccess(ctx context.Context, caller, doctor string) error {
	return rt.invoke(ctx, "AccessControl", "RevokeAccess", caller, func(tx *memledger.TxContext) error {
		return rt.access.RevokeAccess(tx, doctor)
	})
}

func (rt *Runtime) HasAccess(caller, patient, doctor string) (bool, error) {
	var active bool
	err := rt.query("AccessControl", "HasAccess", caller, func(tx *memledger.TxContext) error {
		var err error
		active, err = rt.access.HasAccess(tx, patient, doctor)
		return err
	})
	return active, err
}

func (rt *Runtime) GetAccessGrant(caller, patient, doctor string) (*types.AccessGrantView, error) {
	var view *types.AccessGrantView
	err := rt.query("AccessControl", "GetAccessGrant", caller, func(tx *memledger.TxContext) error {
		var err error
		view, err = rt.access.GetAccessGrant(tx, patient, doctor)
		return err
	})
	return view, err
}

func (rt *Runtime) ListPatientGrantees(caller, patient string) ([]string, error) {
	var grantees []string
	err := rt.query("AccessControl", "ListPatientGrantees", caller, func(tx *memledger.TxContext) error {
		var err error
		grantees, err = rt.access.ListPatientGrantees(tx, patient)
		return err
	})
	return grantees, err
}

func (rt *Runtime) ListDoctorGrantors(caller, doctor string) ([]string, error) {
	var grantors []string
	err := rt.query("AccessControl", "ListDoctorGrantors", caller, func(tx *memledger.TxContext) error {
		var err error
		grantors, err = rt.access.ListDoctorGrantors(tx, doctor)
		return err
	})
	return grantors, err
}

func (rt *Runtime) CountActiveGrants(caller, doctor string) (int, error) {
	var count int
	err := rt.query("AccessControl", "CountActiveGrants", caller, func(tx *memledger.TxContext) error {
		var err error
		count, err = rt.access.CountActiveGrants(tx, doctor)
		return err
	})
	return count, err
}
