// Package identityreg implements the Identity Registry contract: one-time
// registration of patient and doctor identities, administrator-gated doctor
// verification, and reverse lookups from credential hash, health id and
// doctor id to the owning principal.
package identityreg

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/medvault/dlt-registry/pkg/types"
)

// Contract is the Identity Registry smart contract
type Contract struct {
	contractapi.Contract
}

// NewContract creates the Identity Registry contract
func NewContract() *Contract {
	c := &Contract{}
	c.Name = "IdentityRegistry"
	return c
}

// InitLedger fixes the administrator principal. It may be called exactly
// once; the administrator is immutable thereafter and is the only principal
// allowed to verify doctors.
func (c *Contract) InitLedger(ctx contractapi.TransactionContextInterface, admin string) error {
	if admin == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "administrator principal is required")
	}
	stub := ctx.GetStub()
	key, err := adminKey(stub)
	if err != nil {
		return types.NewInternalError("failed to build admin key", err)
	}
	existing, err := stub.GetState(key)
	if err != nil {
		return types.NewInternalError("failed to read admin from world state", err)
	}
	if existing != nil {
		return types.NewConflictError(types.ErrCodeAlreadyInitialized, "administrator already configured")
	}
	return stub.PutState(key, []byte(admin))
}

// RegisterPatient creates a self-verified Patient identity for the caller.
// credentialHash and healthID must be globally unique across all identities.
func (c *Contract) RegisterPatient(ctx contractapi.TransactionContextInterface, credentialHash, healthID, profileRef string) error {
	if credentialHash == "" || healthID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "credential hash and health id are required")
	}

	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	stub := ctx.GetStub()

	if err := c.checkNotRegistered(stub, caller); err != nil {
		return err
	}
	if err := c.checkCredentialFree(stub, credentialHash); err != nil {
		return err
	}
	hidKey, err := healthIDKey(stub, healthID)
	if err != nil {
		return types.NewInternalError("failed to build health id key", err)
	}
	if taken, err := keyTaken(stub, hidKey); err != nil {
		return err
	} else if taken {
		return types.NewConflictError(types.ErrCodeDuplicateHealthID, fmt.Sprintf("health id %s is already registered", healthID))
	}

	now, err := txTime(stub)
	if err != nil {
		return err
	}

	identity := types.Identity{
		Principal:      caller,
		CredentialHash: credentialHash,
		Role:           types.RolePatient,
		ProfileRef:     profileRef,
		Verified:       true, // patients are self-verified
		HealthID:       healthID,
		RegisteredAt:   now,
	}
	if err := c.storeIdentity(stub, &identity); err != nil {
		return err
	}

	credKey, err := credentialKey(stub, credentialHash)
	if err != nil {
		return types.NewInternalError("failed to build credential key", err)
	}
	if err := stub.PutState(credKey, []byte(caller)); err != nil {
		return types.NewInternalError("failed to store credential lookup", err)
	}
	if err := stub.PutState(hidKey, []byte(caller)); err != nil {
		return types.NewInternalError("failed to store health id lookup", err)
	}

	emitEvent(stub, types.EventIdentityRegistered, types.Event{
		Operation: types.EventIdentityRegistered,
		Principal: caller,
		Timestamp: now,
	})
	emitEvent(stub, types.EventHealthIDLinked, types.Event{
		Operation: types.EventHealthIDLinked,
		Principal: caller,
		HealthID:  healthID,
		Timestamp: now,
	})
	return nil
}

// RegisterDoctor creates an unverified Doctor identity for the caller.
// Verification requires a subsequent VerifyDoctor by the administrator.
func (c *Contract) RegisterDoctor(ctx contractapi.TransactionContextInterface, credentialHash, doctorID, profileRef string) error {
	if credentialHash == "" || doctorID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "credential hash and doctor id are required")
	}

	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	stub := ctx.GetStub()

	if err := c.checkNotRegistered(stub, caller); err != nil {
		return err
	}
	if err := c.checkCredentialFree(stub, credentialHash); err != nil {
		return err
	}
	didKey, err := doctorIDKey(stub, doctorID)
	if err != nil {
		return types.NewInternalError("failed to build doctor id key", err)
	}
	if taken, err := keyTaken(stub, didKey); err != nil {
		return err
	} else if taken {
		return types.NewConflictError(types.ErrCodeDuplicateDoctorID, fmt.Sprintf("doctor id %s is already registered", doctorID))
	}

	now, err := txTime(stub)
	if err != nil {
		return err
	}

	identity := types.Identity{
		Principal:      caller,
		CredentialHash: credentialHash,
		Role:           types.RoleDoctor,
		ProfileRef:     profileRef,
		Verified:       false,
		DoctorID:       doctorID,
		RegisteredAt:   now,
	}
	if err := c.storeIdentity(stub, &identity); err != nil {
		return err
	}

	credKey, err := credentialKey(stub, credentialHash)
	if err != nil {
		return types.NewInternalError("failed to build credential key", err)
	}
	if err := stub.PutState(credKey, []byte(caller)); err != nil {
		return types.NewInternalError("failed to store credential lookup", err)
	}
	if err := stub.PutState(didKey, []byte(caller)); err != nil {
		return types.NewInternalError("failed to store doctor id lookup", err)
	}

	emitEvent(stub, types.EventIdentityRegistered, types.Event{
		Operation: types.EventIdentityRegistered,
		Principal: caller,
		Timestamp: now,
	})
	emitEvent(stub, types.EventDoctorIDLinked, types.Event{
		Operation: types.EventDoctorIDLinked,
		Principal: caller,
		DoctorID:  doctorID,
		Timestamp: now,
	})
	return nil
}

// VerifyDoctor marks a doctor identity as verified. Only the administrator
// may call it; verification is monotonic and there is no un-verify.
func (c *Contract) VerifyDoctor(ctx contractapi.TransactionContextInterface, principal string) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	stub := ctx.GetStub()

	admin, err := c.administrator(stub)
	if err != nil {
		return err
	}
	if caller != admin {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "only the administrator may verify doctors")
	}

	identity, err := c.loadIdentity(stub, principal)
	if err != nil {
		return err
	}
	if identity == nil {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("no identity registered for %s", principal))
	}
	if identity.Role != types.RoleDoctor {
		return types.NewAuthorizationError(types.ErrCodeWrongRole, fmt.Sprintf("%s is not a doctor", principal))
	}
	if identity.Verified {
		return types.NewConflictError(types.ErrCodeAlreadyVerified, fmt.Sprintf("doctor %s is already verified", principal))
	}

	identity.Verified = true
	if err := c.storeIdentity(stub, identity); err != nil {
		return err
	}

	now, err := txTime(stub)
	if err != nil {
		return err
	}
	emitEvent(stub, types.EventDoctorVerified, types.Event{
		Operation: types.EventDoctorVerified,
		Principal: principal,
		Timestamp: now,
	})
	return nil
}

// UpdateProfile overwrites the caller's profile reference. Any registered
// identity may update its own profile; there is no role restriction.
func (c *Contract) UpdateProfile(ctx contractapi.TransactionContextInterface, profileRef string) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	stub := ctx.GetStub()

	identity, err := c.loadIdentity(stub, caller)
	if err != nil {
		return err
	}
	if identity == nil {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("no identity registered for %s", caller))
	}

	identity.ProfileRef = profileRef
	if err := c.storeIdentity(stub, identity); err != nil {
		return err
	}

	now, err := txTime(stub)
	if err != nil {
		return err
	}
	emitEvent(stub, types.EventProfileUpdated, types.Event{
		Operation: types.EventProfileUpdated,
		Principal: caller,
		Timestamp: now,
	})
	return nil
}

// GetIdentity returns the full identity snapshot for a principal
func (c *Contract) GetIdentity(ctx contractapi.TransactionContextInterface, principal string) (*types.Identity, error) {
	identity, err := c.loadIdentity(ctx.GetStub(), principal)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("no identity registered for %s", principal))
	}
	return identity, nil
}

// IsVerifiedDoctor reports whether the principal holds a verified Doctor
// identity. It never fails on an absent identity; this predicate is the
// authorization primitive used by the record and access contracts.
func (c *Contract) IsVerifiedDoctor(ctx contractapi.TransactionContextInterface, principal string) (bool, error) {
	return (StateVerifier{}).IsVerifiedDoctor(ctx.GetStub(), principal)
}

// IsPatient reports whether the principal holds a Patient identity
func (c *Contract) IsPatient(ctx contractapi.TransactionContextInterface, principal string) (bool, error) {
	return (StateVerifier{}).IsPatient(ctx.GetStub(), principal)
}

// ResolveByHealthID returns the principal registered under a health id, or
// empty if the id is unmapped
func (c *Contract) ResolveByHealthID(ctx contractapi.TransactionContextInterface, healthID string) (string, error) {
	stub := ctx.GetStub()
	key, err := healthIDKey(stub, healthID)
	if err != nil {
		return "", types.NewInternalError("failed to build health id key", err)
	}
	principal, err := stub.GetState(key)
	if err != nil {
		return "", types.NewInternalError("failed to read health id lookup", err)
	}
	return string(principal), nil
}

// ResolveByDoctorID returns the principal registered under a doctor id, or
// empty if the id is unmapped
func (c *Contract) ResolveByDoctorID(ctx contractapi.TransactionContextInterface, doctorID string) (string, error) {
	stub := ctx.GetStub()
	key, err := doctorIDKey(stub, doctorID)
	if err != nil {
		return "", types.NewInternalError("failed to build doctor id key", err)
	}
	principal, err := stub.GetState(key)
	if err != nil {
		return "", types.NewInternalError("failed to read doctor id lookup", err)
	}
	return string(principal), nil
}

// GetAdministrator returns the administrator principal fixed at initialization
func (c *Contract) GetAdministrator(ctx contractapi.TransactionContextInterface) (string, error) {
	return c.administrator(ctx.GetStub())
}

// helpers

func (c *Contract) checkNotRegistered(stub shim.ChaincodeStubInterface, principal string) error {
	identity, err := c.loadIdentity(stub, principal)
	if err != nil {
		return err
	}
	if identity != nil {
		return types.NewConflictError(types.ErrCodeAlreadyRegistered, fmt.Sprintf("%s already has an identity", principal))
	}
	return nil
}

func (c *Contract) checkCredentialFree(stub shim.ChaincodeStubInterface, credentialHash string) error {
	key, err := credentialKey(stub, credentialHash)
	if err != nil {
		return types.NewInternalError("failed to build credential key", err)
	}
	taken, err := keyTaken(stub, key)
	if err != nil {
		return err
	}
	if taken {
		return types.NewConflictError(types.ErrCodeDuplicateCredential, "credential hash is already registered")
	}
	return nil
}

func (c *Contract) loadIdentity(stub shim.ChaincodeStubInterface, principal string) (*types.Identity, error) {
	return readIdentity(stub, principal)
}

func (c *Contract) storeIdentity(stub shim.ChaincodeStubInterface, identity *types.Identity) error {
	key, err := identityKey(stub, identity.Principal)
	if err != nil {
		return types.NewInternalError("failed to build identity key", err)
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return types.NewInternalError("failed to marshal identity", err)
	}
	if err := stub.PutState(key, data); err != nil {
		return types.NewInternalError("failed to store identity", err)
	}
	return nil
}

func (c *Contract) administrator(stub shim.ChaincodeStubInterface) (string, error) {
	key, err := adminKey(stub)
	if err != nil {
		return "", types.NewInternalError("failed to build admin key", err)
	}
	admin, err := stub.GetState(key)
	if err != nil {
		return "", types.NewInternalError("failed to read admin from world state", err)
	}
	if admin == nil {
		return "", types.NewNotFoundError(types.ErrCodeNotFound, "administrator not configured")
	}
	return string(admin), nil
}

func keyTaken(stub shim.ChaincodeStubInterface, key string) (bool, error) {
	data, err := stub.GetState(key)
	if err != nil {
		return false, types.NewInternalError("failed to read from world state", err)
	}
	return data != nil, nil
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
