package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvault/dlt-registry/internal/eventstore"
	"github.com/medvault/dlt-registry/pkg/logger"
	"github.com/medvault/dlt-registry/pkg/monitoring"
	"github.com/medvault/dlt-registry/pkg/types"
)

const (
	testAdmin   = "admin"
	testPatient = "alice"
	testDoctor  = "grace"
)

func newRuntime(t *testing.T) (*Runtime, *eventstore.MemorySink) {
	t.Helper()
	sink := eventstore.NewMemorySink()
	rt, err := NewRuntime(testAdmin, sink, logger.New("error"), monitoring.NewMetricsCollector("test"))
	require.NoError(t, err)
	return rt, sink
}

func TestRuntimeArchivesEventsOnCommit(t *testing.T) {
	rt, sink := newRuntime(t)
	ctx := context.Background()

	require.NoError(t, rt.RegisterPatient(ctx, testPatient, "hash-a", "HID-001", ""))

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, types.EventIdentityRegistered, events[0].Name)
	assert.Equal(t, types.EventHealthIDLinked, events[1].Name)
	assert.Equal(t, events[0].TxID, events[1].TxID)
	assert.NotEmpty(t, events[0].TxID)
	assert.NotZero(t, events[0].EmittedAt)
}

func TestRuntimeArchivesNothingOnRejection(t *testing.T) {
	rt, sink := newRuntime(t)
	ctx := context.Background()

	require.NoError(t, rt.RegisterPatient(ctx, testPatient, "hash-a", "HID-001", ""))
	drained := len(sink.Events())

	err := rt.RegisterPatient(ctx, testPatient, "hash-b", "HID-002", "")
	assert.Equal(t, types.ErrCodeAlreadyRegistered, types.ErrorCode(err))
	assert.Len(t, sink.Events(), drained, "rejected invocations emit no events")
}

func TestRuntimeEndToEndFlow(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx := context.Background()

	require.NoError(t, rt.RegisterPatient(ctx, testPatient, "hash-a", "HID-001", ""))
	require.NoError(t, rt.RegisterDoctor(ctx, testDoctor, "hash-g", "DOC-100", ""))
	require.NoError(t, rt.VerifyDoctor(ctx, testAdmin, testDoctor))

	id, err := rt.CreateRecord(ctx, testDoctor, testPatient, "sha256:h", "cas://h", string(types.RecordTypeDiagnosis))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	require.NoError(t, rt.GrantAccess(ctx, testPatient, testDoctor, 3600))
	active, err := rt.HasAccess("anyone", testPatient, testDoctor)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, rt.RevokeAccess(ctx, testPatient, testDoctor))
	active, err = rt.HasAccess("anyone", testPatient, testDoctor)
	require.NoError(t, err)
	assert.False(t, active)

	match, err := rt.VerifyRecord("anyone", id, "sha256:h")
	require.NoError(t, err)
	assert.True(t, match)
}
