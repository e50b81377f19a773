// Package accessctl implements the Access Control contract: patient-granted,
// time-bounded, revocable read permissions keyed by (patient, doctor) pair.
// Expiry is lazy: it is a predicate over the transaction timestamp, never a
// background sweep.
package accessctl

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/medvault/dlt-registry/chaincode/registry/identityreg"
	"github.com/medvault/dlt-registry/pkg/types"
)

const (
	grantKeyType = "grant"
	indexKeyType = "grantidx"

	granteeIndex = "grantee"
	grantorIndex = "grantor"
)

// Contract is the Access Control smart contract
type Contract struct {
	contractapi.Contract

	identity identityreg.Verifier
}

// NewContract creates the Access Control contract with the given identity
// capability
func NewContract(identity identityreg.Verifier) *Contract {
	c := &Contract{identity: identity}
	c.Name = "AccessControl"
	return c
}

// GrantAccess grants the doctor read access to the caller's data. The caller
// must be a patient and the doctor a verified doctor. durationSeconds == 0
// means no expiry; otherwise the grant expires durationSeconds after the
// transaction timestamp. Re-granting an existing pair overwrites the grant
// entirely, including reviving a revoked or expired one.
func (c *Contract) GrantAccess(ctx contractapi.TransactionContextInterface, doctor string, durationSeconds int64) error {
	if durationSeconds < 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "duration must not be negative")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	stub := ctx.GetStub()

	isPatient, err := c.identity.IsPatient(stub, caller)
	if err != nil {
		return err
	}
	if !isPatient {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "caller is not a registered patient")
	}
	verified, err := c.identity.IsVerifiedDoctor(stub, doctor)
	if err != nil {
		return err
	}
	if !verified {
		return types.NewAuthorizationError(types.ErrCodeInvalidTarget, fmt.Sprintf("%s is not a verified doctor", doctor))
	}

	now, err := txTime(stub)
	if err != nil {
		return err
	}
	var expiresAt int64
	if durationSeconds > 0 {
		expiresAt = now + durationSeconds
	}

	existing, err := c.loadGrant(stub, caller, doctor)
	if err != nil {
		return err
	}

	grant := types.AccessGrant{
		Patient:   caller,
		Doctor:    doctor,
		Granted:   true,
		GrantedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := c.storeGrant(stub, &grant); err != nil {
		return err
	}

	// the pair indexes record every pairing ever made, exactly once
	if existing == nil {
		if err := c.appendIndex(stub, granteeIndex, caller, doctor); err != nil {
			return err
		}
		if err := c.appendIndex(stub, grantorIndex, doctor, caller); err != nil {
			return err
		}
	}

	emitEvent(stub, types.EventAccessGranted, types.Event{
		Operation: types.EventAccessGranted,
		Patient:   caller,
		Doctor:    doctor,
		ExpiresAt: expiresAt,
		Timestamp: now,
	})
	return nil
}

// RevokeAccess sets the caller's grant to the doctor inactive. The caller
// must be a patient and the pair must have a grant record; revoking an
// already-revoked grant is a silent no-op that leaves the record inactive.
func (c *Contract) RevokeAccess(ctx contractapi.TransactionContextInterface, doctor string) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	stub := ctx.GetStub()

	isPatient, err := c.identity.IsPatient(stub, caller)
	if err != nil {
		return err
	}
	if !isPatient {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "caller is not a registered patient")
	}

	grant, err := c.loadGrant(stub, caller, doctor)
	if err != nil {
		return err
	}
	if grant == nil {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("no grant exists for %s", doctor))
	}

	grant.Granted = false
	if err := c.storeGrant(stub, grant); err != nil {
		return err
	}

	now, err := txTime(stub)
	if err != nil {
		return err
	}
	emitEvent(stub, types.EventAccessRevoked, types.Event{
		Operation: types.EventAccessRevoked,
		Patient:   caller,
		Doctor:    doctor,
		Timestamp: now,
	})
	return nil
}

// HasAccess reports whether the doctor currently holds active access to the
// patient's data: a grant exists, is not revoked, and is not expired at the
// transaction timestamp. It is a pure read open to any caller.
func (c *Contract) HasAccess(ctx contractapi.TransactionContextInterface, patient, doctor string) (bool, error) {
	stub := ctx.GetStub()
	grant, err := c.loadGrant(stub, patient, doctor)
	if err != nil {
		return false, err
	}
	if grant == nil {
		return false, nil
	}
	now, err := txTime(stub)
	if err != nil {
		return false, err
	}
	return grant.Active(now), nil
}

// GetAccessGrant returns the stored grant for a pair together with the
// computed expiry flag. The stored record is never rewritten by expiry;
// IsExpired is derived at read time.
func (c *Contract) GetAccessGrant(ctx contractapi.TransactionContextInterface, patient, doctor string) (*types.AccessGrantView, error) {
	stub := ctx.GetStub()
	grant, err := c.loadGrant(stub, patient, doctor)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("no grant exists for pair (%s, %s)", patient, doctor))
	}
	now, err := txTime(stub)
	if err != nil {
		return nil, err
	}
	return &types.AccessGrantView{
		Patient:   grant.Patient,
		Doctor:    grant.Doctor,
		Granted:   grant.Granted,
		GrantedAt: grant.GrantedAt,
		ExpiresAt: grant.ExpiresAt,
		IsExpired: grant.Expired(now),
	}, nil
}

// ListPatientGrantees returns every doctor the patient has ever paired with,
// in first-grant order, regardless of current grant state
func (c *Contract) ListPatientGrantees(ctx contractapi.TransactionContextInterface, patient string) ([]string, error) {
	return c.readIndex(ctx.GetStub(), granteeIndex, patient)
}

// ListDoctorGrantors returns every patient that has ever granted to the
// doctor, in first-grant order
func (c *Contract) ListDoctorGrantors(ctx contractapi.TransactionContextInterface, doctor string) ([]string, error) {
	return c.readIndex(ctx.GetStub(), grantorIndex, doctor)
}

// CountActiveGrants counts the patients whose grant to the doctor is active
// at the transaction timestamp. Linear in the number of historical grantors;
// callers needing frequent counts should cache off-system.
func (c *Contract) CountActiveGrants(ctx contractapi.TransactionContextInterface, doctor string) (int, error) {
	stub := ctx.GetStub()
	patients, err := c.readIndex(stub, grantorIndex, doctor)
	if err != nil {
		return 0, err
	}
	now, err := txTime(stub)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, patient := range patients {
		grant, err := c.loadGrant(stub, patient, doctor)
		if err != nil {
			return 0, err
		}
		if grant != nil && grant.Active(now) {
			count++
		}
	}
	return count, nil
}

// helpers

func grantKey(stub shim.ChaincodeStubInterface, patient, doctor string) (string, error) {
	return stub.CreateCompositeKey(grantKeyType, []string{patient, doctor})
}

func (c *Contract) loadGrant(stub shim.ChaincodeStubInterface, patient, doctor string) (*types.AccessGrant, error) {
	key, err := grantKey(stub, patient, doctor)
	if err != nil {
		return nil, types.NewInternalError("failed to build grant key", err)
	}
	data, err := stub.GetState(key)
	if err != nil {
		return nil, types.NewInternalError("failed to read grant from world state", err)
	}
	if data == nil {
		return nil, nil
	}
	var grant types.AccessGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, types.NewInternalError("failed to unmarshal grant", err)
	}
	return &grant, nil
}

func (c *Contract) storeGrant(stub shim.ChaincodeStubInterface, grant *types.AccessGrant) error {
	key, err := grantKey(stub, grant.Patient, grant.Doctor)
	if err != nil {
		return types.NewInternalError("failed to build grant key", err)
	}
	data, err := json.Marshal(grant)
	if err != nil {
		return types.NewInternalError("failed to marshal grant", err)
	}
	if err := stub.PutState(key, data); err != nil {
		return types.NewInternalError("failed to store grant", err)
	}
	return nil
}

func (c *Contract) appendIndex(stub shim.ChaincodeStubInterface, kind, owner, member string) error {
	key, err := stub.CreateCompositeKey(indexKeyType, []string{kind, owner})
	if err != nil {
		return types.NewInternalError("failed to build index key", err)
	}
	members, err := readIndexKey(stub, key)
	if err != nil {
		return err
	}
	members = append(members, member)
	data, err := json.Marshal(members)
	if err != nil {
		return types.NewInternalError("failed to marshal index", err)
	}
	if err := stub.PutState(key, data); err != nil {
		return types.NewInternalError("failed to store index", err)
	}
	return nil
}

func (c *Contract) readIndex(stub shim.ChaincodeStubInterface, kind, owner string) ([]string, error) {
	key, err := stub.CreateCompositeKey(indexKeyType, []string{kind, owner})
	if err != nil {
		return nil, types.NewInternalError("failed to build index key", err)
	}
	return readIndexKey(stub, key)
}

func readIndexKey(stub shim.ChaincodeStubInterface, key string) ([]string, error) {
	data, err := stub.GetState(key)
	if err != nil {
		return nil, types.NewInternalError("failed to read index from world state", err)
	}
	if data == nil {
		return []string{}, nil
	}
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, types.NewInternalError("failed to unmarshal index", err)
	}
	return members, nil
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
