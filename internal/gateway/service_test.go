package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvault/dlt-registry/internal/eventstore"
	"github.com/medvault/dlt-registry/pkg/config"
	"github.com/medvault/dlt-registry/pkg/logger"
	"github.com/medvault/dlt-registry/pkg/monitoring"
	"github.com/medvault/dlt-registry/pkg/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Ledger: config.LedgerConfig{AdminPrincipal: testAdmin},
		JWT:    config.JWTConfig{SecretKey: "test-secret", Issuer: "medvault-registry"},
		Monitoring: config.MonitoringConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
			HealthPath:  "/health",
		},
		LogLevel: "error",
	}

	svc, err := NewService(cfg, eventstore.NewMemorySink(), logger.New(cfg.LogLevel))
	require.NoError(t, err)
	return svc
}

func (s *Service) testToken(t *testing.T, principal string) string {
	t.Helper()
	token, err := s.tokens.GenerateToken(principal, time.Hour)
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, s *Service, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestAuthRequired(t *testing.T) {
	svc := newTestService(t)

	rec := doRequest(t, svc, http.MethodGet, "/api/v1/administrator", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, svc, http.MethodGet, "/api/v1/administrator", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// health endpoint is open
	rec = doRequest(t, svc, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterPatientEndpoint(t *testing.T) {
	svc := newTestService(t)
	token := svc.testToken(t, "alice")

	rec := doRequest(t, svc, http.MethodPost, "/api/v1/identities/patients", token, registerPatientRequest{
		CredentialHash: "hash-a",
		HealthID:       "HID-001",
		ProfileRef:     "profile://alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, svc, http.MethodGet, "/api/v1/identities/alice", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var identity types.Identity
	decodeResponse(t, rec, &identity)
	assert.Equal(t, "alice", identity.Principal)
	assert.Equal(t, types.RolePatient, identity.Role)

	// conflict surfaces as 409 with the registry code
	rec = doRequest(t, svc, http.MethodPost, "/api/v1/identities/patients", token, registerPatientRequest{
		CredentialHash: "hash-b",
		HealthID:       "HID-002",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	var errResp errorResponse
	decodeResponse(t, rec, &errResp)
	assert.Equal(t, types.ErrCodeAlreadyRegistered, errResp.Code)
}

func TestRecordLifecycleOverHTTP(t *testing.T) {
	svc := newTestService(t)
	patientTok := svc.testToken(t, "alice")
	doctorTok := svc.testToken(t, "grace")
	adminTok := svc.testToken(t, testAdmin)
	thirdTok := svc.testToken(t, "mallory")

	rec := doRequest(t, svc, http.MethodPost, "/api/v1/identities/patients", patientTok, registerPatientRequest{CredentialHash: "hash-a", HealthID: "HID-001"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(t, svc, http.MethodPost, "/api/v1/identities/doctors", doctorTok, registerDoctorRequest{CredentialHash: "hash-g", DoctorID: "DOC-100"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// unverified doctor is rejected with 403
	rec = doRequest(t, svc, http.MethodPost, "/api/v1/records", doctorTok, createRecordRequest{
		Patient: "alice", ContentHash: "sha256:h", RecordType: string(types.RecordTypeDiagnosis),
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, svc, http.MethodPost, "/api/v1/identities/grace/verify", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, svc, http.MethodPost, "/api/v1/records", doctorTok, createRecordRequest{
		Patient: "alice", ContentHash: "sha256:h", RecordType: string(types.RecordTypeDiagnosis),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]uint64
	decodeResponse(t, rec, &created)
	assert.Equal(t, uint64(0), created["id"])

	// hide the record, then a third party gets 403
	rec = doRequest(t, svc, http.MethodPost, fmt.Sprintf("/api/v1/records/%d/visibility", created["id"]), patientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, svc, http.MethodGet, "/api/v1/records/0", thirdTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doRequest(t, svc, http.MethodGet, "/api/v1/records/0", patientTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, svc, http.MethodPost, "/api/v1/records/0/verify", thirdTok, verifyRecordRequest{ContentHash: "sha256:h"})
	require.Equal(t, http.StatusOK, rec.Code)
	var verified map[string]bool
	decodeResponse(t, rec, &verified)
	assert.True(t, verified["match"])

	rec = doRequest(t, svc, http.MethodGet, "/api/v1/records/not-a-number", patientTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccessGrantOverHTTP(t *testing.T) {
	svc := newTestService(t)
	patientTok := svc.testToken(t, "alice")
	doctorTok := svc.testToken(t, "grace")
	adminTok := svc.testToken(t, testAdmin)

	doRequest(t, svc, http.MethodPost, "/api/v1/identities/patients", patientTok, registerPatientRequest{CredentialHash: "hash-a", HealthID: "HID-001"})
	doRequest(t, svc, http.MethodPost, "/api/v1/identities/doctors", doctorTok, registerDoctorRequest{CredentialHash: "hash-g", DoctorID: "DOC-100"})
	doRequest(t, svc, http.MethodPost, "/api/v1/identities/grace/verify", adminTok, nil)

	rec := doRequest(t, svc, http.MethodPost, "/api/v1/access/grants", patientTok, grantAccessRequest{Doctor: "grace", DurationSeconds: 3600})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, svc, http.MethodGet, "/api/v1/access/check/alice/grace", doctorTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check map[string]bool
	decodeResponse(t, rec, &check)
	assert.True(t, check["active"])

	rec = doRequest(t, svc, http.MethodGet, "/api/v1/doctors/grace/grants/count", patientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count map[string]int
	decodeResponse(t, rec, &count)
	assert.Equal(t, 1, count["active_grants"])

	rec = doRequest(t, svc, http.MethodDelete, "/api/v1/access/grants/grace", patientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, svc, http.MethodGet, "/api/v1/access/check/alice/grace", doctorTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeResponse(t, rec, &check)
	assert.False(t, check["active"])

	// grant record survives revocation with granted=false
	rec = doRequest(t, svc, http.MethodGet, "/api/v1/access/grants/alice/grace", patientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view types.AccessGrantView
	decodeResponse(t, rec, &view)
	assert.False(t, view.Granted)
	assert.False(t, view.IsExpired)
}

func TestHealthReflectsRegisteredCheckers(t *testing.T) {
	svc := newTestService(t)

	rec := doRequest(t, svc, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// an unhealthy dependency flips the endpoint to 503
	svc.RegisterHealthChecker("event_store", monitoring.NewCustomHealthChecker(func(_ context.Context) monitoring.HealthCheck {
		return monitoring.HealthCheck{Status: monitoring.HealthStatusUnhealthy, Message: "database unreachable"}
	}))

	rec = doRequest(t, svc, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTokenValidator(t *testing.T) {
	tv := NewTokenValidator("secret", "medvault-registry")

	token, err := tv.GenerateToken("alice", time.Hour)
	require.NoError(t, err)

	principal, err := tv.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", principal)

	// wrong secret
	other := NewTokenValidator("other-secret", "medvault-registry")
	_, err = other.ValidateJWT(token)
	assert.Error(t, err)

	// wrong issuer
	foreign := NewTokenValidator("secret", "someone-else")
	badIssuer, err := foreign.GenerateToken("alice", time.Hour)
	require.NoError(t, err)
	_, err = tv.ValidateJWT(badIssuer)
	assert.Error(t, err)

	// expired
	expired, err := tv.GenerateToken("alice", -time.Minute)
	require.NoError(t, err)
	_, err = tv.ValidateJWT(expired)
	assert.Error(t, err)
}
