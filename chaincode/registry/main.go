package main

import (
	"log"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/medvault/dlt-registry/chaincode/registry/accessctl"
	"github.com/medvault/dlt-registry/chaincode/registry/identityreg"
	"github.com/medvault/dlt-registry/chaincode/registry/recordreg"
)

func main() {
	verifier := identityreg.StateVerifier{}

	registryChaincode, err := contractapi.NewChaincode(
		identityreg.NewContract(),
		recordreg.NewContract(verifier),
		accessctl.NewContract(verifier),
	)
	if err != nil {
		log.Panicf("Error creating registry chaincode: %v", err)
	}

	if err := registryChaincode.Start(); err != nil {
		log.Panicf("Error starting registry chaincode: %v", err)
	}
}
