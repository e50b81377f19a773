package identityreg

import (
	"github.com/hyperledger/fabric-chaincode-go/shim"
)

// Composite key object types for identity state. The reverse-lookup keys
// store the owning principal as their value, giving O(1) uniqueness checks
// and resolution.
const (
	identityKeyType   = "identity"
	credentialKeyType = "credential"
	healthIDKeyType   = "healthid"
	doctorIDKeyType   = "doctorid"
	metaKeyType       = "meta"
)

func identityKey(stub shim.ChaincodeStubInterface, principal string) (string, error) {
	return stub.CreateCompositeKey(identityKeyType, []string{principal})
}

func credentialKey(stub shim.ChaincodeStubInterface, credentialHash string) (string, error) {
	return stub.CreateCompositeKey(credentialKeyType, []string{credentialHash})
}

func healthIDKey(stub shim.ChaincodeStubInterface, healthID string) (string, error) {
	return stub.CreateCompositeKey(healthIDKeyType, []string{healthID})
}

func doctorIDKey(stub shim.ChaincodeStubInterface, doctorID string) (string, error) {
	return stub.CreateCompositeKey(doctorIDKeyType, []string{doctorID})
}

func adminKey(stub shim.ChaincodeStubInterface) (string, error) {
	return stub.CreateCompositeKey(metaKeyType, []string{"admin"})
}
