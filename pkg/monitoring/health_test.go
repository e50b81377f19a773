package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseHealthChecker(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	checker := NewDatabaseHealthChecker(db)

	mock.ExpectPing()
	check := checker.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, check.Status)
	assert.Contains(t, check.Details, "open_connections")

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	check = checker.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, check.Status)
	assert.Contains(t, check.Message, "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthManagerAggregation(t *testing.T) {
	hm := NewHealthManager("registry-gateway", "test")

	hm.RegisterChecker("ok", NewCustomHealthChecker(func(_ context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusHealthy}
	}))

	report := hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusHealthy, report.Status)
	require.Len(t, report.Checks, 1)

	// one unhealthy dependency makes the whole report unhealthy
	hm.RegisterChecker("broken", NewCustomHealthChecker(func(_ context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusUnhealthy, Message: "down"}
	}))

	report = hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, report.Status)
	assert.Len(t, report.Checks, 2)
	assert.Equal(t, 1, report.Summary[string(HealthStatusUnhealthy)])
}
