package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event. Identifier carries the
// attempted login identifier, already masked by the caller; it is further
// redacted outright in production.
type AuditEvent struct {
	EventType     string
	UserID        string
	ActorID       string
	IPAddress     string
	Identifier    string
	Success       bool
	FailureReason string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	env    string
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger, env string) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		env:    env,
	}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Identifier != "" {
		attrs = append(attrs, RedactedAttr("identifier", event.Identifier, al.env))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogAccountAction logs administrative account actions (create, update,
// deactivate, soft delete, password reset).
func (al *AuditLogger) LogAccountAction(eventType, userID, actorID string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		slog.String("user_id", userID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if actorID != "" {
		attrs = append(attrs, slog.String("actor_id", actorID))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
