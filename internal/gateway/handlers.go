package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/medvault/dlt-registry/pkg/types"
)

type registerPatientRequest struct {
	CredentialHash string `json:"credential_hash"`
	HealthID       string `json:"health_id"`
	ProfileRef     string `json:"profile_ref"`
}

type registerDoctorRequest struct {
	CredentialHash string `json:"credential_hash"`
	DoctorID       string `json:"doctor_id"`
	ProfileRef     string `json:"profile_ref"`
}

type updateProfileRequest struct {
	ProfileRef string `json:"profile_ref"`
}

type createRecordRequest struct {
	Patient     string `json:"patient"`
	ContentHash string `json:"content_hash"`
	ContentRef  string `json:"content_ref"`
	RecordType  string `json:"record_type"`
}

type verifyRecordRequest struct {
	ContentHash string `json:"content_hash"`
}

type grantAccessRequest struct {
	Doctor          string `json:"doctor"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Identity Registry handlers

func (s *Service) handleRegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req registerPatientRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.runtime.RegisterPatient(r.Context(), callerPrincipal(r.Context()), req.CredentialHash, req.HealthID, req.ProfileRef); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"principal": callerPrincipal(r.Context())})
}

func (s *Service) handleRegisterDoctor(w http.ResponseWriter, r *http.Request) {
	var req registerDoctorRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.runtime.RegisterDoctor(r.Context(), callerPrincipal(r.Context()), req.CredentialHash, req.DoctorID, req.ProfileRef); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"principal": callerPrincipal(r.Context())})
}

func (s *Service) handleVerifyDoctor(w http.ResponseWriter, r *http.Request) {
	principal := mux.Vars(r)["principal"]
	if err := s.runtime.VerifyDoctor(r.Context(), callerPrincipal(r.Context()), principal); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (s *Service) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.runtime.UpdateProfile(r.Context(), callerPrincipal(r.Context()), req.ProfileRef); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"profile_ref": req.ProfileRef})
}

func (s *Service) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	identity, err := s.runtime.GetIdentity(callerPrincipal(r.Context()), mux.Vars(r)["principal"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, identity)
}

func (s *Service) handleResolveHealthID(w http.ResponseWriter, r *http.Request) {
	principal, err := s.runtime.ResolveByHealthID(callerPrincipal(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"principal": principal})
}

func (s *Service) handleResolveDoctorID(w http.ResponseWriter, r *http.Request) {
	principal, err := s.runtime.ResolveByDoctorID(callerPrincipal(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"principal": principal})
}

func (s *Service) handleGetAdministrator(w http.ResponseWriter, r *http.Request) {
	admin, err := s.runtime.GetAdministrator(callerPrincipal(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"administrator": admin})
}

// Record Registry handlers

func (s *Service) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	id, err := s.runtime.CreateRecord(r.Context(), callerPrincipal(r.Context()), req.Patient, req.ContentHash, req.ContentRef, req.RecordType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

func (s *Service) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordID(w, r)
	if !ok {
		return
	}
	record, err := s.runtime.GetRecord(callerPrincipal(r.Context()), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Service) handleToggleVisibility(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordID(w, r)
	if !ok {
		return
	}
	if err := s.runtime.ToggleVisibility(r.Context(), callerPrincipal(r.Context()), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
}

func (s *Service) handleVerifyRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordID(w, r)
	if !ok {
		return
	}
	var req verifyRecordRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	match, err := s.runtime.VerifyRecord(callerPrincipal(r.Context()), id, req.ContentHash)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"match": match})
}

func (s *Service) handleListPatientRecords(w http.ResponseWriter, r *http.Request) {
	patient := mux.Vars(r)["principal"]
	caller := callerPrincipal(r.Context())

	var (
		ids []uint64
		err error
	)
	if r.URL.Query().Get("visible") == "true" {
		ids, err = s.runtime.ListVisiblePatientRecords(caller, patient)
	} else {
		ids, err = s.runtime.ListPatientRecords(caller, patient)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]uint64{"record_ids": ids})
}

func (s *Service) handleListAuthorRecords(w http.ResponseWriter, r *http.Request) {
	ids, err := s.runtime.ListAuthorRecords(callerPrincipal(r.Context()), mux.Vars(r)["principal"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]uint64{"record_ids": ids})
}

// Access Control handlers

func (s *Service) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	var req grantAccessRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.runtime.GrantAccess(r.Context(), callerPrincipal(r.Context()), req.Doctor, req.DurationSeconds); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"doctor": req.Doctor})
}

func (s *Service) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	doctor := mux.Vars(r)["doctor"]
	if err := s.runtime.RevokeAccess(r.Context(), callerPrincipal(r.Context()), doctor); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"doctor": doctor})
}

func (s *Service) handleHasAccess(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	active, err := s.runtime.HasAccess(callerPrincipal(r.Context()), vars["patient"], vars["doctor"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (s *Service) handleGetAccessGrant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := s.runtime.GetAccessGrant(callerPrincipal(r.Context()), vars["patient"], vars["doctor"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Service) handleListPatientGrantees(w http.ResponseWriter, r *http.Request) {
	grantees, err := s.runtime.ListPatientGrantees(callerPrincipal(r.Context()), mux.Vars(r)["principal"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"grantees": grantees})
}

func (s *Service) handleCountActiveGrants(w http.ResponseWriter, r *http.Request) {
	count, err := s.runtime.CountActiveGrants(callerPrincipal(r.Context()), mux.Vars(r)["principal"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"active_grants": count})
}

func (s *Service) handleListDoctorGrantors(w http.ResponseWriter, r *http.Request) {
	grantors, err := s.runtime.ListDoctorGrantors(callerPrincipal(r.Context()), mux.Vars(r)["principal"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"grantors": grantors})
}

// response helpers

func (s *Service) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeErrorStatus(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "malformed request body")
		return false
	}
	return true
}

func (s *Service) recordID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeErrorStatus(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "record id must be a non-negative integer")
		return 0, false
	}
	return id, true
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps registry error categories onto HTTP statuses
func (s *Service) writeError(w http.ResponseWriter, err error) {
	var regErr *types.RegistryError
	status := http.StatusInternalServerError
	code := types.ErrCodeInternalError
	message := "internal error"

	if errors.As(err, &regErr) {
		code = regErr.Code
		message = regErr.Message
		switch regErr.Type {
		case types.ErrorTypeValidation:
			status = http.StatusBadRequest
		case types.ErrorTypeAuthorization:
			status = http.StatusForbidden
		case types.ErrorTypeConflict:
			status = http.StatusConflict
		case types.ErrorTypeNotFound:
			status = http.StatusNotFound
		case types.ErrorTypeInternal:
			status = http.StatusInternalServerError
			message = "internal error"
		}
	}

	s.writeErrorStatus(w, status, code, message)
}

func (s *Service) writeErrorStatus(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Code: code, Message: message})
}
