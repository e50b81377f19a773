package identityreg

import (
	"encoding/json"

	"github.com/hyperledger/fabric-chaincode-go/shim"

	"github.com/medvault/dlt-registry/pkg/types"
)

// Verifier is the read-only identity capability consumed by the record and
// access contracts. It exposes only the two authorization predicates, so the
// other contracts cannot mutate identity state and tests can substitute a
// fake.
type Verifier interface {
	// IsPatient reports whether principal holds a Patient identity.
	// Returns false, never an error, for an absent identity.
	IsPatient(stub shim.ChaincodeStubInterface, principal string) (bool, error)

	// IsVerifiedDoctor reports whether principal holds a verified Doctor
	// identity
	IsVerifiedDoctor(stub shim.ChaincodeStubInterface, principal string) (bool, error)
}

// StateVerifier answers the predicates from the shared world state written
// by the Identity Registry contract.
type StateVerifier struct{}

// IsPatient implements Verifier
func (StateVerifier) IsPatient(stub shim.ChaincodeStubInterface, principal string) (bool, error) {
	identity, err := readIdentity(stub, principal)
	if err != nil {
		return false, err
	}
	return identity != nil && identity.Role == types.RolePatient, nil
}

// IsVerifiedDoctor implements Verifier
func (StateVerifier) IsVerifiedDoctor(stub shim.ChaincodeStubInterface, principal string) (bool, error) {
	identity, err := readIdentity(stub, principal)
	if err != nil {
		return false, err
	}
	return identity != nil && identity.Role == types.RoleDoctor && identity.Verified, nil
}

func readIdentity(stub shim.ChaincodeStubInterface, principal string) (*types.Identity, error) {
	key, err := identityKey(stub, principal)
	if err != nil {
		return nil, types.NewInternalError("failed to build identity key", err)
	}
	data, err := stub.GetState(key)
	if err != nil {
		return nil, types.NewInternalError("failed to read identity from world state", err)
	}
	if data == nil {
		return nil, nil
	}
	var identity types.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, types.NewInternalError("failed to unmarshal identity", err)
	}
	return &identity, nil
}
