package memledger

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/golang/protobuf/ptypes/timestamp"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	pb "github.com/hyperledger/fabric-protos-go/peer"
)

const (
	minUnicodeRuneValue   = 0
	maxUnicodeRuneValue   = utf8.MaxRune
	compositeKeyNamespace = "\x00"
)

// Event is a contract event captured during one transaction
type Event struct {
	Name    string
	Payload []byte
}

// Stub implements shim.ChaincodeStubInterface over a Ledger. State writes go
// straight to the shared map: the contracts are strictly check-then-commit,
// so no rollback buffer is needed.
type Stub struct {
	ledger    *Ledger
	txID      string
	ts        time.Time
	events    []Event
	transient map[string][]byte
}

var errUnsupported = errors.New("memledger: operation not supported")

// Events returns the events emitted so far in this transaction
func (s *Stub) Events() []Event { return s.events }

// GetTxID returns the transaction id
func (s *Stub) GetTxID() string { return s.txID }

// GetChannelID returns a fixed in-process channel name
func (s *Stub) GetChannelID() string { return "memledger" }

// GetState reads a key from the world state
func (s *Stub) GetState(key string) ([]byte, error) {
	return s.ledger.get(key), nil
}

// PutState writes a key to the world state
func (s *Stub) PutState(key string, value []byte) error {
	if key == "" {
		return errors.New("memledger: empty key")
	}
	s.ledger.put(key, value)
	return nil
}

// DelState removes a key from the world state
func (s *Stub) DelState(key string) error {
	s.ledger.delete(key)
	return nil
}

// GetStateByRange iterates keys in [startKey, endKey) in lexical order
func (s *Stub) GetStateByRange(startKey, endKey string) (shim.StateQueryIteratorInterface, error) {
	keys, values := s.ledger.snapshotRange(startKey, endKey)
	return newKVIterator(keys, values), nil
}

// GetStateByRangeWithPagination iterates the full range; bookmarks are not
// supported in-process
func (s *Stub) GetStateByRangeWithPagination(startKey, endKey string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *pb.QueryResponseMetadata, error) {
	keys, values := s.ledger.snapshotRange(startKey, endKey)
	meta := &pb.QueryResponseMetadata{FetchedRecordsCount: int32(len(keys))}
	return newKVIterator(keys, values), meta, nil
}

// GetStateByPartialCompositeKey iterates all keys under a composite prefix
func (s *Stub) GetStateByPartialCompositeKey(objectType string, keys []string) (shim.StateQueryIteratorInterface, error) {
	prefix, err := s.CreateCompositeKey(objectType, keys)
	if err != nil {
		return nil, err
	}
	ks, vs := s.ledger.snapshotRange(prefix, prefix+string(rune(maxUnicodeRuneValue)))
	return newKVIterator(ks, vs), nil
}

// GetStateByPartialCompositeKeyWithPagination behaves like the unpaginated form
func (s *Stub) GetStateByPartialCompositeKeyWithPagination(objectType string, keys []string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *pb.QueryResponseMetadata, error) {
	it, err := s.GetStateByPartialCompositeKey(objectType, keys)
	if err != nil {
		return nil, nil, err
	}
	return it, &pb.QueryResponseMetadata{}, nil
}

// CreateCompositeKey builds a composite key in the null-byte namespace,
// matching the Fabric shim encoding
func (s *Stub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	ck := compositeKeyNamespace + objectType + string(rune(minUnicodeRuneValue))
	for _, attr := range attributes {
		ck += attr + string(rune(minUnicodeRuneValue))
	}
	return ck, nil
}

// SplitCompositeKey splits a composite key into its object type and attributes
func (s *Stub) SplitCompositeKey(compositeKey string) (string, []string, error) {
	if len(compositeKey) < 2 || compositeKey[0] != 0 {
		return "", nil, fmt.Errorf("memledger: not a composite key: %q", compositeKey)
	}
	var components []string
	start := 1
	for i := 1; i < len(compositeKey); i++ {
		if compositeKey[i] == minUnicodeRuneValue {
			components = append(components, compositeKey[start:i])
			start = i + 1
		}
	}
	if len(components) == 0 {
		return "", nil, fmt.Errorf("memledger: malformed composite key: %q", compositeKey)
	}
	return components[0], components[1:], nil
}

// SetEvent records a named contract event for this transaction
func (s *Stub) SetEvent(name string, payload []byte) error {
	if name == "" {
		return errors.New("memledger: event name must not be empty")
	}
	s.events = append(s.events, Event{Name: name, Payload: payload})
	return nil
}

// GetTxTimestamp returns the timestamp fixed at transaction creation
func (s *Stub) GetTxTimestamp() (*timestamp.Timestamp, error) {
	return &timestamp.Timestamp{Seconds: s.ts.Unix(), Nanos: int32(s.ts.Nanosecond())}, nil
}

// GetCreator returns the transaction creator bytes
func (s *Stub) GetCreator() ([]byte, error) { return nil, nil }

// GetTransient returns the transient map supplied with the proposal
func (s *Stub) GetTransient() (map[string][]byte, error) { return s.transient, nil }

// GetBinding is unused in-process
func (s *Stub) GetBinding() ([]byte, error) { return nil, nil }

// GetDecorations is unused in-process
func (s *Stub) GetDecorations() map[string][]byte { return nil }

// GetSignedProposal is unused in-process
func (s *Stub) GetSignedProposal() (*pb.SignedProposal, error) { return nil, nil }

// GetArgs is unused: contracts are invoked as methods, not via an arg vector
func (s *Stub) GetArgs() [][]byte { return nil }

// GetStringArgs is unused in-process
func (s *Stub) GetStringArgs() []string { return nil }

// GetFunctionAndParameters is unused in-process
func (s *Stub) GetFunctionAndParameters() (string, []string) { return "", nil }

// GetArgsSlice is unused in-process
func (s *Stub) GetArgsSlice() ([]byte, error) { return nil, nil }

// InvokeChaincode is not supported: the three contracts share one world state
func (s *Stub) InvokeChaincode(chaincodeName string, args [][]byte, channel string) pb.Response {
	return shim.Error("memledger: cross-chaincode invocation not supported")
}

// SetStateValidationParameter is accepted and ignored
func (s *Stub) SetStateValidationParameter(key string, ep []byte) error { return nil }

// GetStateValidationParameter always reports no endorsement policy
func (s *Stub) GetStateValidationParameter(key string) ([]byte, error) { return nil, nil }

// GetQueryResult requires a rich-query state database
func (s *Stub) GetQueryResult(query string) (shim.StateQueryIteratorInterface, error) {
	return nil, errUnsupported
}

// GetQueryResultWithPagination requires a rich-query state database
func (s *Stub) GetQueryResultWithPagination(query string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *pb.QueryResponseMetadata, error) {
	return nil, nil, errUnsupported
}

// GetHistoryForKey is not tracked by the in-memory ledger
func (s *Stub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	return nil, errUnsupported
}

// Private-data collections are not modelled by the in-memory ledger.

func (s *Stub) GetPrivateData(collection, key string) ([]byte, error) { return nil, errUnsupported }

func (s *Stub) GetPrivateDataHash(collection, key string) ([]byte, error) {
	return nil, errUnsupported
}

func (s *Stub) PutPrivateData(collection string, key string, value []byte) error {
	return errUnsupported
}

func (s *Stub) DelPrivateData(collection, key string) error { return errUnsupported }

func (s *Stub) PurgePrivateData(collection, key string) error { return errUnsupported }

func (s *Stub) SetPrivateDataValidationParameter(collection, key string, ep []byte) error {
	return errUnsupported
}

func (s *Stub) GetPrivateDataValidationParameter(collection, key string) ([]byte, error) {
	return nil, errUnsupported
}

func (s *Stub) GetPrivateDataByRange(collection, startKey, endKey string) (shim.StateQueryIteratorInterface, error) {
	return nil, errUnsupported
}

func (s *Stub) GetPrivateDataByPartialCompositeKey(collection, objectType string, keys []string) (shim.StateQueryIteratorInterface, error) {
	return nil, errUnsupported
}

func (s *Stub) GetPrivateDataQueryResult(collection, query string) (shim.StateQueryIteratorInterface, error) {
	return nil, errUnsupported
}

// kvIterator iterates a snapshot of key/value pairs
type kvIterator struct {
	kvs []*queryresult.KV
	idx int
}

func newKVIterator(keys []string, values [][]byte) *kvIterator {
	kvs := make([]*queryresult.KV, len(keys))
	for i := range keys {
		kvs[i] = &queryresult.KV{Key: keys[i], Value: values[i]}
	}
	return &kvIterator{kvs: kvs}
}

// HasNext reports whether the iterator has more entries
func (it *kvIterator) HasNext() bool { return it.idx < len(it.kvs) }

// Next returns the next key/value pair
func (it *kvIterator) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, errors.New("memledger: iterator exhausted")
	}
	kv := it.kvs[it.idx]
	it.idx++
	return kv, nil
}

// Close releases the iterator
func (it *kvIterator) Close() error { return nil }
