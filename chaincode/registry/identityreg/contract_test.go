package identityreg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvault/dlt-registry/pkg/memledger"
	"github.com/medvault/dlt-registry/pkg/types"
)

const (
	admin   = "x509::CN=admin"
	alice   = "x509::CN=alice"
	bob     = "x509::CN=bob"
	drGrace = "x509::CN=grace"
)

func newFixture(t *testing.T) (*Contract, *memledger.Ledger) {
	t.Helper()
	contract := NewContract()
	ledger := memledger.New()
	require.NoError(t, contract.InitLedger(ledger.NewTx(admin), admin))
	return contract, ledger
}

func TestInitLedgerOnce(t *testing.T) {
	contract := NewContract()
	ledger := memledger.New()

	require.NoError(t, contract.InitLedger(ledger.NewTx(admin), admin))

	err := contract.InitLedger(ledger.NewTx(admin), "x509::CN=other")
	assert.Equal(t, types.ErrCodeAlreadyInitialized, types.ErrorCode(err))

	got, err := contract.GetAdministrator(ledger.NewTx(alice))
	require.NoError(t, err)
	assert.Equal(t, admin, got)
}

func TestRegisterPatient(t *testing.T) {
	contract, ledger := newFixture(t)

	ctx := ledger.NewTx(alice)
	require.NoError(t, contract.RegisterPatient(ctx, "hash-alice", "HID-001", "profile://alice"))

	identity, err := contract.GetIdentity(ledger.NewTx(bob), alice)
	require.NoError(t, err)
	assert.Equal(t, alice, identity.Principal)
	assert.Equal(t, types.RolePatient, identity.Role)
	assert.True(t, identity.Verified, "patients are verified at registration")
	assert.Equal(t, "HID-001", identity.HealthID)
	assert.Equal(t, "profile://alice", identity.ProfileRef)

	events := ctx.Events()
	require.Len(t, events, 2)
	assert.Equal(t, types.EventIdentityRegistered, events[0].Name)
	assert.Equal(t, types.EventHealthIDLinked, events[1].Name)
}

func TestRegisterPatientRejectsDuplicates(t *testing.T) {
	contract, ledger := newFixture(t)
	require.NoError(t, contract.RegisterPatient(ledger.NewTx(alice), "hash-alice", "HID-001", ""))

	// one identity per principal, ever
	err := contract.RegisterPatient(ledger.NewTx(alice), "hash-alice-2", "HID-002", "")
	assert.Equal(t, types.ErrCodeAlreadyRegistered, types.ErrorCode(err))

	// credential hashes are unique across roles
	err = contract.RegisterDoctor(ledger.NewTx(bob), "hash-alice", "DOC-001", "")
	assert.Equal(t, types.ErrCodeDuplicateCredential, types.ErrorCode(err))

	// health ids are unique
	err = contract.RegisterPatient(ledger.NewTx(bob), "hash-bob", "HID-001", "")
	assert.Equal(t, types.ErrCodeDuplicateHealthID, types.ErrorCode(err))

	// the failed registrations left no identity behind
	_, err = contract.GetIdentity(ledger.NewTx(admin), bob)
	assert.Equal(t, types.ErrCodeNotFound, types.ErrorCode(err))
}

func TestRegisterDoctorStartsUnverified(t *testing.T) {
	contract, ledger := newFixture(t)

	ctx := ledger.NewTx(drGrace)
	require.NoError(t, contract.RegisterDoctor(ctx, "hash-grace", "DOC-100", "profile://grace"))

	identity, err := contract.GetIdentity(ledger.NewTx(admin), drGrace)
	require.NoError(t, err)
	assert.Equal(t, types.RoleDoctor, identity.Role)
	assert.False(t, identity.Verified)
	assert.Equal(t, "DOC-100", identity.DoctorID)

	verified, err := contract.IsVerifiedDoctor(ledger.NewTx(admin), drGrace)
	require.NoError(t, err)
	assert.False(t, verified)

	events := ctx.Events()
	require.Len(t, events, 2)
	assert.Equal(t, types.EventDoctorIDLinked, events[1].Name)
}

func TestRegisterDoctorRejectsDuplicateDoctorID(t *testing.T) {
	contract, ledger := newFixture(t)
	require.NoError(t, contract.RegisterDoctor(ledger.NewTx(drGrace), "hash-grace", "DOC-100", ""))

	err := contract.RegisterDoctor(ledger.NewTx(bob), "hash-bob", "DOC-100", "")
	assert.Equal(t, types.ErrCodeDuplicateDoctorID, types.ErrorCode(err))
}

func TestVerifyDoctor(t *testing.T) {
	contract, ledger := newFixture(t)
	require.NoError(t, contract.RegisterDoctor(ledger.NewTx(drGrace), "hash-grace", "DOC-100", ""))
	require.NoError(t, contract.RegisterPatient(ledger.NewTx(alice), "hash-alice", "HID-001", ""))

	// only the administrator may verify
	err := contract.VerifyDoctor(ledger.NewTx(alice), drGrace)
	assert.Equal(t, types.ErrCodeUnauthorized, types.ErrorCode(err))

	err = contract.VerifyDoctor(ledger.NewTx(admin), "x509::CN=nobody")
	assert.Equal(t, types.ErrCodeNotFound, types.ErrorCode(err))

	err = contract.VerifyDoctor(ledger.NewTx(admin), alice)
	assert.Equal(t, types.ErrCodeWrongRole, types.ErrorCode(err))

	ctx := ledger.NewTx(admin)
	require.NoError(t, contract.VerifyDoctor(ctx, drGrace))
	events := ctx.Events()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventDoctorVerified, events[0].Name)

	verified, err := contract.IsVerifiedDoctor(ledger.NewTx(bob), drGrace)
	require.NoError(t, err)
	assert.True(t, verified)

	// verification is monotonic
	err = contract.VerifyDoctor(ledger.NewTx(admin), drGrace)
	assert.Equal(t, types.ErrCodeAlreadyVerified, types.ErrorCode(err))
	verified, err = contract.IsVerifiedDoctor(ledger.NewTx(bob), drGrace)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestUpdateProfile(t *testing.T) {
	contract, ledger := newFixture(t)

	err := contract.UpdateProfile(ledger.NewTx(alice), "profile://v2")
	assert.Equal(t, types.ErrCodeNotFound, types.ErrorCode(err))

	require.NoError(t, contract.RegisterPatient(ledger.NewTx(alice), "hash-alice", "HID-001", "profile://v1"))
	require.NoError(t, contract.UpdateProfile(ledger.NewTx(alice), "profile://v2"))

	identity, err := contract.GetIdentity(ledger.NewTx(alice), alice)
	require.NoError(t, err)
	assert.Equal(t, "profile://v2", identity.ProfileRef)
}

func TestPredicatesOnAbsentIdentity(t *testing.T) {
	contract, ledger := newFixture(t)

	isPatient, err := contract.IsPatient(ledger.NewTx(admin), "x509::CN=ghost")
	require.NoError(t, err)
	assert.False(t, isPatient)

	verified, err := contract.IsVerifiedDoctor(ledger.NewTx(admin), "x509::CN=ghost")
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestResolveLookups(t *testing.T) {
	contract, ledger := newFixture(t)
	require.NoError(t, contract.RegisterPatient(ledger.NewTx(alice), "hash-alice", "HID-001", ""))
	require.NoError(t, contract.RegisterDoctor(ledger.NewTx(drGrace), "hash-grace", "DOC-100", ""))

	principal, err := contract.ResolveByHealthID(ledger.NewTx(bob), "HID-001")
	require.NoError(t, err)
	assert.Equal(t, alice, principal)

	principal, err = contract.ResolveByDoctorID(ledger.NewTx(bob), "DOC-100")
	require.NoError(t, err)
	assert.Equal(t, drGrace, principal)

	principal, err = contract.ResolveByHealthID(ledger.NewTx(bob), "HID-999")
	require.NoError(t, err)
	assert.Empty(t, principal)
}

func TestRegisteredAtUsesTxTimestamp(t *testing.T) {
	contract, ledger := newFixture(t)
	at := time.Unix(1700000000, 0)

	require.NoError(t, contract.RegisterPatient(ledger.NewTxAt(alice, at), "hash-alice", "HID-001", ""))

	identity, err := contract.GetIdentity(ledger.NewTx(alice), alice)
	require.NoError(t, err)
	assert.Equal(t, at.Unix(), identity.RegisteredAt)
}
