package eventstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvault/dlt-registry/pkg/database"
	"github.com/medvault/dlt-registry/pkg/logger"
)

func setupPostgresSink(t *testing.T) (*PostgresSink, sqlmock.Sqlmock, func()) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ledger_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_ledger_events_tx").
		WillReturnResult(sqlmock.NewResult(0, 0))

	db := database.NewFromSQL(sqlDB, logger.New("error"))
	sink, err := NewPostgresSink(context.Background(), db)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB.Close()
	}
	return sink, mock, cleanup
}

func TestPostgresSinkAppend(t *testing.T) {
	sink, mock, cleanup := setupPostgresSink(t)
	defer cleanup()

	event := StoredEvent{
		TxID:      "tx-001",
		Name:      "PatientRegistered",
		Payload:   []byte(`{"operation":"PatientRegistered","patient":"alice"}`),
		EmittedAt: int64(1700000000),
	}

	mock.ExpectExec("INSERT INTO ledger_events").
		WithArgs(event.TxID, event.Name, []byte(event.Payload), event.EmittedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, sink.Append(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkAppendError(t *testing.T) {
	sink, mock, cleanup := setupPostgresSink(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO ledger_events").
		WillReturnError(errors.New("connection reset"))

	err := sink.Append(context.Background(), StoredEvent{
		TxID:    "tx-002",
		Name:    "AccessGranted",
		Payload: []byte(`{}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to append ledger event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkSchemaFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ledger_events").
		WillReturnError(errors.New("permission denied for schema public"))

	_, err = NewPostgresSink(context.Background(), database.NewFromSQL(sqlDB, logger.New("error")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create event store schema")
}
