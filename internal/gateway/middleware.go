package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	requestIDKey contextKey = "request_id"
)

// callerPrincipal returns the authenticated principal from the request
// context, or empty if the request skipped authentication
func callerPrincipal(ctx context.Context) string {
	if principal, ok := ctx.Value(principalKey).(string); ok {
		return principal
	}
	return ""
}

// authMiddleware authenticates requests with a Bearer JWT and stores the
// subject principal in the request context. Health and metrics endpoints
// are open.
func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			s.metrics.RecordAuthAttempt("missing")
			s.writeErrorStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
			return
		}

		principal, err := s.tokens.ValidateJWT(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			s.metrics.RecordAuthAttempt("rejected")
			s.logger.WithError(err).Warn("Token validation failed")
			s.writeErrorStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token")
			return
		}

		s.metrics.RecordAuthAttempt("accepted")
		s.logger.WithPrincipal(principal).Debug("Request authenticated")
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDMiddleware assigns each request an id for log correlation
func (s *Service) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request with its outcome and latency
func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		s.logger.HTTPRequest(r.Context(), r.Method, r.URL.Path, r.RemoteAddr, wrapper.statusCode, time.Since(start).Milliseconds())
	})
}

func (s *Service) isPublicPath(path string) bool {
	return path == s.healthPath || path == s.metricsPath
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
