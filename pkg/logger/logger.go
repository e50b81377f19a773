package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with registry-specific helpers
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithFields creates a new logger entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithField creates a new logger entry with a single field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithError creates a new logger entry with an error field
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// WithPrincipal creates a new logger entry with the caller principal field
func (l *Logger) WithPrincipal(principal string) *logrus.Entry {
	return l.Logger.WithField("principal", principal)
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// WithContext creates a logger entry carrying request-scoped fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithFields(logrus.Fields{})

	if requestID := ctx.Value("request_id"); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}
	if principal := ctx.Value("principal"); principal != nil {
		entry = entry.WithField("principal", principal)
	}

	return entry
}

// ContractInvocation logs a contract operation with its outcome. Rejections
// carry the registry error code so operators can distinguish business-rule
// failures from internal ones.
func (l *Logger) ContractInvocation(ctx context.Context, contract, operation, principal, txID string, err error, code string) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"contract":       contract,
		"operation":      operation,
		"principal":      principal,
		"transaction_id": txID,
	})

	if err != nil {
		entry.WithError(err).WithField("code", code).Warn("Contract invocation rejected")
	} else {
		entry.Info("Contract invocation committed")
	}
}

// LedgerEvent logs a contract event emitted by a committed invocation
func (l *Logger) LedgerEvent(ctx context.Context, name, txID string, payload []byte) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"event":          name,
		"transaction_id": txID,
		"payload":        string(payload),
	}).Info("Ledger event emitted")
}

// HTTPRequest logs HTTP request events
func (l *Logger) HTTPRequest(ctx context.Context, method, path, clientIP string, statusCode int, duration int64) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"http_request": true,
		"method":       method,
		"path":         path,
		"client_ip":    clientIP,
		"status_code":  statusCode,
		"duration_ms":  duration,
	})

	if statusCode >= 400 {
		entry.Warn("HTTP request completed with error")
	} else {
		entry.Info("HTTP request completed")
	}
}

// Audit logs access-control decisions with structured format
func (l *Logger) Audit(principal, action, resource string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":     true,
		"principal": principal,
		"action":    action,
		"resource":  resource,
		"success":   success,
		"details":   details,
	})

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}
