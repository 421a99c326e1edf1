package logger

import (
	"log/slog"
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	// Mask username: keep first char, mask rest
	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Mask domain: keep TLD, mask the rest
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizedPhone masks a phone number for logging, keeping the last two digits.
func SanitizedPhone(phone string) string {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 4 {
		return "[invalid-phone]"
	}
	return strings.Repeat("*", len(phone)-2) + phone[len(phone)-2:]
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := map[string]bool{
		"password":      true,
		"token":         true,
		"refresh_token": true,
		"access_token":  true,
		"secret":        true,
	}

	if rawQuery == "" {
		return false
	}

	for _, pair := range strings.Split(rawQuery, "&") {
		key := pair
		if idx := strings.Index(pair, "="); idx >= 0 {
			key = pair[:idx]
		}
		if sensitiveParams[strings.ToLower(key)] {
			return true
		}
	}

	return false
}
