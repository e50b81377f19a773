package memledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	ledger := New()
	stub := ledger.NewTx("alice").GetStub()

	require.NoError(t, stub.PutState("k1", []byte("v1")))
	v, err := stub.GetState("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	// writes in one tx are visible to the next
	v, err = ledger.NewTx("bob").GetStub().GetState("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, stub.DelState("k1"))
	v, err = stub.GetState("k1")
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Error(t, stub.PutState("", []byte("x")))
}

func TestCompositeKeys(t *testing.T) {
	stub := New().NewTx("alice").GetStub()

	key, err := stub.CreateCompositeKey("identity", []string{"alice", "extra"})
	require.NoError(t, err)
	assert.Equal(t, "\x00identity\x00alice\x00extra\x00", key)

	objectType, attrs, err := stub.SplitCompositeKey(key)
	require.NoError(t, err)
	assert.Equal(t, "identity", objectType)
	assert.Equal(t, []string{"alice", "extra"}, attrs)

	_, _, err = stub.SplitCompositeKey("plainkey")
	assert.Error(t, err)
}

func TestPartialCompositeKeyQuery(t *testing.T) {
	ledger := New()
	stub := ledger.NewTx("alice").GetStub()

	for _, name := range []string{"b", "a", "c"} {
		key, err := stub.CreateCompositeKey("grant", []string{"alice", name})
		require.NoError(t, err)
		require.NoError(t, stub.PutState(key, []byte(name)))
	}
	otherKey, err := stub.CreateCompositeKey("grant", []string{"zoe", "d"})
	require.NoError(t, err)
	require.NoError(t, stub.PutState(otherKey, []byte("d")))

	it, err := stub.GetStateByPartialCompositeKey("grant", []string{"alice"})
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for it.HasNext() {
		kv, err := it.Next()
		require.NoError(t, err)
		got = append(got, string(kv.Value))
	}
	// lexical key order, scoped to the prefix
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestEventsAreScopedToTransaction(t *testing.T) {
	ledger := New()

	tx1 := ledger.NewTx("alice")
	require.NoError(t, tx1.GetStub().SetEvent("EventOne", []byte("{}")))
	require.NoError(t, tx1.GetStub().SetEvent("EventTwo", []byte("{}")))

	tx2 := ledger.NewTx("alice")

	require.Len(t, tx1.Events(), 2)
	assert.Equal(t, "EventOne", tx1.Events()[0].Name)
	assert.Empty(t, tx2.Events())

	assert.Error(t, tx1.GetStub().SetEvent("", nil))
}

func TestClockInjection(t *testing.T) {
	ledger := New()
	fixed := time.Unix(1700000000, 0)
	ledger.Now = func() time.Time { return fixed }

	ts, err := ledger.NewTx("alice").GetStub().GetTxTimestamp()
	require.NoError(t, err)
	assert.Equal(t, fixed.Unix(), ts.Seconds)

	later := fixed.Add(time.Hour)
	ts, err = ledger.NewTxAt("alice", later).GetStub().GetTxTimestamp()
	require.NoError(t, err)
	assert.Equal(t, later.Unix(), ts.Seconds)
}

func TestClientIdentity(t *testing.T) {
	tx := New().NewTx("x509::CN=alice")

	id, err := tx.GetClientIdentity().GetID()
	require.NoError(t, err)
	assert.Equal(t, "x509::CN=alice", id)

	msp, err := tx.GetClientIdentity().GetMSPID()
	require.NoError(t, err)
	assert.Equal(t, "MedVaultMSP", msp)

	assert.NotEmpty(t, tx.TxID())
	// distinct transactions get distinct ids
	assert.NotEqual(t, tx.TxID(), New().NewTx("x509::CN=alice").TxID())
}
