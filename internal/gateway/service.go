// Package gateway exposes the registry contracts over REST. It hosts them
// in-process on a memledger world state, authenticates callers with JWTs,
// and archives contract events into the configured sink.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/medvault/dlt-registry/internal/eventstore"
	"github.com/medvault/dlt-registry/pkg/config"
	"github.com/medvault/dlt-registry/pkg/logger"
	"github.com/medvault/dlt-registry/pkg/monitoring"
)

// Service is the registry gateway HTTP service
type Service struct {
	router  *mux.Router
	server  *http.Server
	runtime *Runtime
	tokens  *TokenValidator
	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
	health  *monitoring.HealthManager

	healthPath  string
	metricsPath string
}

// NewService creates and wires the gateway service
func NewService(cfg *config.Config, sink eventstore.Sink, log *logger.Logger) (*Service, error) {
	metrics := monitoring.NewMetricsCollector("registry-gateway")

	runtime, err := NewRuntime(cfg.Ledger.AdminPrincipal, sink, log, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry runtime: %w", err)
	}

	s := &Service{
		router:      mux.NewRouter(),
		runtime:     runtime,
		tokens:      NewTokenValidator(cfg.JWT.SecretKey, cfg.JWT.Issuer),
		logger:      log,
		metrics:     metrics,
		health:      monitoring.NewHealthManager("registry-gateway", "1.0.0"),
		healthPath:  cfg.Monitoring.HealthPath,
		metricsPath: cfg.Monitoring.MetricsPath,
	}

	s.health.RegisterChecker("ledger", monitoring.NewCustomHealthChecker(s.ledgerHealthCheck))

	s.setupRoutes()
	s.setupMiddleware()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return s, nil
}

// Runtime exposes the contract runtime, primarily for provisioning tooling
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Tokens exposes the token validator for provisioning tooling
func (s *Service) Tokens() *TokenValidator {
	return s.tokens
}

// Handler returns the fully wired HTTP handler
func (s *Service) Handler() http.Handler {
	return s.router
}

// RegisterHealthChecker adds a dependency check to the health endpoint
func (s *Service) RegisterHealthChecker(name string, checker monitoring.HealthChecker) {
	s.health.RegisterChecker(name, checker)
}

// Start starts the gateway server
func (s *Service) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting registry gateway")
	return s.server.ListenAndServe()
}

// Stop stops the gateway server gracefully
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Stopping registry gateway")
	return s.server.Shutdown(ctx)
}

// setupRoutes sets up the routing
func (s *Service) setupRoutes() {
	s.router.HandleFunc(s.healthPath, s.health.HTTPHandler()).Methods("GET")
	s.router.Handle(s.metricsPath, s.metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Identity Registry
	api.HandleFunc("/identities/patients", s.handleRegisterPatient).Methods("POST")
	api.HandleFunc("/identities/doctors", s.handleRegisterDoctor).Methods("POST")
	api.HandleFunc("/identities/profile", s.handleUpdateProfile).Methods("PUT")
	api.HandleFunc("/identities/{principal}/verify", s.handleVerifyDoctor).Methods("POST")
	api.HandleFunc("/identities/{principal}", s.handleGetIdentity).Methods("GET")
	api.HandleFunc("/resolve/health-id/{id}", s.handleResolveHealthID).Methods("GET")
	api.HandleFunc("/resolve/doctor-id/{id}", s.handleResolveDoctorID).Methods("GET")
	api.HandleFunc("/administrator", s.handleGetAdministrator).Methods("GET")

	// Record Registry
	api.HandleFunc("/records", s.handleCreateRecord).Methods("POST")
	api.HandleFunc("/records/{id}", s.handleGetRecord).Methods("GET")
	api.HandleFunc("/records/{id}/visibility", s.handleToggleVisibility).Methods("POST")
	api.HandleFunc("/records/{id}/verify", s.handleVerifyRecord).Methods("POST")
	api.HandleFunc("/patients/{principal}/records", s.handleListPatientRecords).Methods("GET")
	api.HandleFunc("/doctors/{principal}/records", s.handleListAuthorRecords).Methods("GET")

	// Access Control
	api.HandleFunc("/access/grants", s.handleGrantAccess).Methods("POST")
	api.HandleFunc("/access/grants/{doctor}", s.handleRevokeAccess).Methods("DELETE")
	api.HandleFunc("/access/grants/{patient}/{doctor}", s.handleGetAccessGrant).Methods("GET")
	api.HandleFunc("/access/check/{patient}/{doctor}", s.handleHasAccess).Methods("GET")
	api.HandleFunc("/patients/{principal}/grantees", s.handleListPatientGrantees).Methods("GET")
	api.HandleFunc("/doctors/{principal}/grantors", s.handleListDoctorGrantors).Methods("GET")
	api.HandleFunc("/doctors/{principal}/grants/count", s.handleCountActiveGrants).Methods("GET")
}

// setupMiddleware sets up middleware
func (s *Service) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.metrics.HTTPMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.authMiddleware)
}

// ledgerHealthCheck verifies the runtime answers a trivial query
func (s *Service) ledgerHealthCheck(_ context.Context) monitoring.HealthCheck {
	check := monitoring.HealthCheck{}
	if _, err := s.runtime.GetAdministrator("health-probe"); err != nil {
		check.Status = monitoring.HealthStatusUnhealthy
		check.Message = fmt.Sprintf("ledger query failed: %v", err)
		return check
	}
	check.Status = monitoring.HealthStatusHealthy
	check.Message = "ledger reachable"
	return check
}
