package memledger

import (
	"time"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
)

// TxContext implements contractapi.TransactionContextInterface for one
// in-process invocation
type TxContext struct {
	stub *Stub
	id   *ClientIdentity
}

// GetStub returns the transaction's stub
func (c *TxContext) GetStub() shim.ChaincodeStubInterface { return c.stub }

// GetClientIdentity returns the asserted caller identity
func (c *TxContext) GetClientIdentity() cid.ClientIdentity { return c.id }

// Identity returns the concrete client identity for attribute setup in tests
func (c *TxContext) Identity() *ClientIdentity { return c.id }

// Events returns the contract events emitted during the invocation
func (c *TxContext) Events() []Event { return c.stub.Events() }

// TxID returns the transaction id minted for the invocation
func (c *TxContext) TxID() string { return c.stub.txID }

// Timestamp returns the transaction timestamp fixed at creation
func (c *TxContext) Timestamp() time.Time { return c.stub.ts }
