package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogAuthAttempt_IdentifierRedactedInProduction(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)), "production")

	al.LogAuthAttempt(AuditEvent{
		EventType:     "login_failed",
		Identifier:    "d*****@*******.com",
		FailureReason: "invalid_credentials",
	})

	assert.Contains(t, buf.String(), "[REDACTED]")
	assert.NotContains(t, buf.String(), "d*****@")
}

func TestLogAuthAttempt_IdentifierVisibleInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)), "development")

	al.LogAuthAttempt(AuditEvent{
		EventType:  "login_failed",
		Identifier: "d*****@*******.com",
		Success:    false,
	})

	assert.Contains(t, buf.String(), "d*****@*******.com")
}
