// Package recordreg implements the Record Registry contract: an append-only
// ledger of medical-record references with gap-free sequence numbers,
// creator/owner authorization and patient-controlled visibility.
package recordreg

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/medvault/dlt-registry/chaincode/registry/identityreg"
	"github.com/medvault/dlt-registry/pkg/types"
)

const (
	recordKeyType = "record"
	indexKeyType  = "recordidx"
	metaKeyType   = "recordmeta"

	patientIndex = "patient"
	authorIndex  = "author"
)

// Contract is the Record Registry smart contract. It consults the injected
// identity capability on every creation; it never mutates identity state.
type Contract struct {
	contractapi.Contract

	identity identityreg.Verifier
}

// NewContract creates the Record Registry contract with the given identity
// capability
func NewContract(identity identityreg.Verifier) *Contract {
	c := &Contract{identity: identity}
	c.Name = "RecordRegistry"
	return c
}

// CreateRecord appends an immutable record reference for a patient. The
// caller is the author and must be a verified doctor; the patient must hold
// a Patient identity. Both checks happen at creation time only: later role
// changes do not retroactively invalidate records. Returns the assigned
// sequence number.
func (c *Contract) CreateRecord(ctx contractapi.TransactionContextInterface, patient, contentHash, contentRef, recordType string) (uint64, error) {
	if contentHash == "" {
		return 0, types.NewValidationError(types.ErrCodeInvalidInput, "content hash is required")
	}
	rt := types.RecordType(recordType)
	if !types.ValidRecordType(rt) {
		return 0, types.NewValidationError(types.ErrCodeInvalidRecordType, fmt.Sprintf("unknown record type %q", recordType))
	}

	caller, err := callerID(ctx)
	if err != nil {
		return 0, err
	}
	stub := ctx.GetStub()

	verified, err := c.identity.IsVerifiedDoctor(stub, caller)
	if err != nil {
		return 0, err
	}
	if !verified {
		return 0, types.NewAuthorizationError(types.ErrCodeUnauthorized, "caller is not a verified doctor")
	}
	isPatient, err := c.identity.IsPatient(stub, patient)
	if err != nil {
		return 0, err
	}
	if !isPatient {
		return 0, types.NewAuthorizationError(types.ErrCodeInvalidPatient, fmt.Sprintf("%s is not a registered patient", patient))
	}

	now, err := txTime(stub)
	if err != nil {
		return 0, err
	}
	id, err := c.nextSequence(stub)
	if err != nil {
		return 0, err
	}

	record := types.Record{
		ID:          id,
		Patient:     patient,
		Author:      caller,
		ContentHash: contentHash,
		ContentRef:  contentRef,
		RecordType:  rt,
		Visible:     true,
		CreatedAt:   now,
	}
	if err := c.storeRecord(stub, &record); err != nil {
		return 0, err
	}
	if err := c.appendIndex(stub, patientIndex, patient, id); err != nil {
		return 0, err
	}
	if err := c.appendIndex(stub, authorIndex, caller, id); err != nil {
		return 0, err
	}

	emitEvent(stub, types.EventRecordCreated, types.Event{
		Operation: types.EventRecordCreated,
		Patient:   patient,
		Doctor:    caller,
		RecordID:  id,
		Timestamp: now,
	})
	return id, nil
}

// ToggleVisibility flips a record's visibility. Only the record's patient
// may call it; each call is a single flip, not a set-to-value.
func (c *Contract) ToggleVisibility(ctx contractapi.TransactionContextInterface, recordID uint64) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	stub := ctx.GetStub()

	record, err := c.loadRecord(stub, recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("record %d does not exist", recordID))
	}
	if caller != record.Patient {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "only the record's patient may change visibility")
	}

	record.Visible = !record.Visible
	if err := c.storeRecord(stub, record); err != nil {
		return err
	}

	now, err := txTime(stub)
	if err != nil {
		return err
	}
	emitEvent(stub, types.EventRecordVisibilityToggled, types.Event{
		Operation: types.EventRecordVisibilityToggled,
		Patient:   record.Patient,
		RecordID:  recordID,
		Visible:   record.Visible,
		Timestamp: now,
	})
	return nil
}

// VerifyRecord reports whether candidateHash equals the content hash stored
// at creation. It is a pure equality check: the contract never re-fetches or
// re-hashes external content.
func (c *Contract) VerifyRecord(ctx contractapi.TransactionContextInterface, recordID uint64, candidateHash string) (bool, error) {
	record, err := c.loadRecord(ctx.GetStub(), recordID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("record %d does not exist", recordID))
	}
	return record.ContentHash == candidateHash, nil
}

// GetRecord returns a record if the caller is its patient, its author, or
// the record is visible. This check is independent of Access Control grants:
// an active grant does not open GetRecord (the two authorization channels
// are deliberately separate).
func (c *Contract) GetRecord(ctx contractapi.TransactionContextInterface, recordID uint64) (*types.Record, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	record, err := c.loadRecord(ctx.GetStub(), recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("record %d does not exist", recordID))
	}
	if caller != record.Patient && caller != record.Author && !record.Visible {
		return nil, types.NewAuthorizationError(types.ErrCodeAccessDenied, fmt.Sprintf("caller may not read record %d", recordID))
	}
	return record, nil
}

// ListPatientRecords returns the patient's record ids in creation order,
// without access filtering (filtering happens at GetRecord time)
func (c *Contract) ListPatientRecords(ctx contractapi.TransactionContextInterface, patient string) ([]uint64, error) {
	return c.readIndex(ctx.GetStub(), patientIndex, patient)
}

// ListAuthorRecords returns the ids of records authored by a doctor, in
// creation order
func (c *Contract) ListAuthorRecords(ctx contractapi.TransactionContextInterface, author string) ([]uint64, error) {
	return c.readIndex(ctx.GetStub(), authorIndex, author)
}

// ListVisiblePatientRecords returns the visible sub-list of the patient's
// records, preserving relative order
func (c *Contract) ListVisiblePatientRecords(ctx contractapi.TransactionContextInterface, patient string) ([]uint64, error) {
	stub := ctx.GetStub()
	ids, err := c.readIndex(stub, patientIndex, patient)
	if err != nil {
		return nil, err
	}
	visible := make([]uint64, 0, len(ids))
	for _, id := range ids {
		record, err := c.loadRecord(stub, id)
		if err != nil {
			return nil, err
		}
		if record != nil && record.Visible {
			visible = append(visible, id)
		}
	}
	return visible, nil
}

// helpers

// nextSequence allocates the next gap-free record id, starting at 0
func (c *Contract) nextSequence(stub shim.ChaincodeStubInterface) (uint64, error) {
	key, err := stub.CreateCompositeKey(metaKeyType, []string{"seq"})
	if err != nil {
		return 0, types.NewInternalError("failed to build sequence key", err)
	}
	data, err := stub.GetState(key)
	if err != nil {
		return 0, types.NewInternalError("failed to read record sequence", err)
	}
	var next uint64
	if data != nil {
		next, err = strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return 0, types.NewInternalError("corrupt record sequence", err)
		}
	}
	if err := stub.PutState(key, []byte(strconv.FormatUint(next+1, 10))); err != nil {
		return 0, types.NewInternalError("failed to advance record sequence", err)
	}
	return next, nil
}

func recordKey(stub shim.ChaincodeStubInterface, id uint64) (string, error) {
	return stub.CreateCompositeKey(recordKeyType, []string{fmt.Sprintf("%020d", id)})
}

func (c *Contract) loadRecord(stub shim.ChaincodeStubInterface, id uint64) (*types.Record, error) {
	key, err := recordKey(stub, id)
	if err != nil {
		return nil, types.NewInternalError("failed to build record key", err)
	}
	data, err := stub.GetState(key)
	if err != nil {
		return nil, types.NewInternalError("failed to read record from world state", err)
	}
	if data == nil {
		return nil, nil
	}
	var record types.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, types.NewInternalError("failed to unmarshal record", err)
	}
	return &record, nil
}

func (c *Contract) storeRecord(stub shim.ChaincodeStubInterface, record *types.Record) error {
	key, err := recordKey(stub, record.ID)
	if err != nil {
		return types.NewInternalError("failed to build record key", err)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return types.NewInternalError("failed to marshal record", err)
	}
	if err := stub.PutState(key, data); err != nil {
		return types.NewInternalError("failed to store record", err)
	}
	return nil
}

func (c *Contract) appendIndex(stub shim.ChaincodeStubInterface, kind, principal string, id uint64) error {
	key, err := stub.CreateCompositeKey(indexKeyType, []string{kind, principal})
	if err != nil {
		return types.NewInternalError("failed to build index key", err)
	}
	ids, err := readIndexKey(stub, key)
	if err != nil {
		return err
	}
	ids = append(ids, id)
	data, err := json.Marshal(ids)
	if err != nil {
		return types.NewInternalError("failed to marshal index", err)
	}
	if err := stub.PutState(key, data); err != nil {
		return types.NewInternalError("failed to store index", err)
	}
	return nil
}

func (c *Contract) readIndex(stub shim.ChaincodeStubInterface, kind, principal string) ([]uint64, error) {
	key, err := stub.CreateCompositeKey(indexKeyType, []string{kind, principal})
	if err != nil {
		return nil, types.NewInternalError("failed to build index key", err)
	}
	return readIndexKey(stub, key)
}

func readIndexKey(stub shim.ChaincodeStubInterface, key string) ([]uint64, error) {
	data, err := stub.GetState(key)
	if err != nil {
		return nil, types.NewInternalError("failed to read index from world state", err)
	}
	if data == nil {
		return []uint64{}, nil
	}
	var ids []uint64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, types.NewInternalError("failed to unmarshal index", err)
	}
	return ids, nil
}

func callerID(ctx contractapi.TransactionContextInterface) (string, error) {
	id, err := ctx.GetClientIdentity().GetID()
	if err != nil {
		return "", types.NewInternalError("failed to get caller identity", err)
	}
	return id, nil
}

func txTime(stub shim.ChaincodeStubInterface) (int64, error) {
	ts, err := stub.GetTxTimestamp()
	if err != nil {
		return 0, types.NewInternalError("failed to get transaction timestamp", err)
	}
	return ts.Seconds, nil
}

func emitEvent(stub shim.ChaincodeStubInterface, name string, event types.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = stub.SetEvent(name, payload)
}
