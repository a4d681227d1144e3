package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// Common structured log field keys to keep logs searchable/consistent.
const (
	FieldService    = "service"
	FieldVersion    = "version"
	FieldProvider   = "provider"
	FieldRequestID  = "request_id"
	FieldPath       = "path"
	FieldMethod     = "method"
	FieldStatusCode = "status_code"
	FieldCount      = "count"
	FieldUnread     = "unread"
	FieldDurationMS = "duration_ms"
	FieldInterval   = "interval"
	FieldOutcome    = "outcome"
	FieldCredential = "credential"
	FieldSession    = "session"
)

// WithCommon appends service/version fields when provided.
func WithCommon(attrs []slog.Attr, service, version string) []slog.Attr {
	if service != "" {
		attrs = append(attrs, slog.String(FieldService, service))
	}
	if version != "" {
		attrs = append(attrs, slog.String(FieldVersion, version))
	}
	return attrs
}

// Credential returns a log attribute carrying a short fingerprint of a token, never the token itself.
func Credential(token string) slog.Attr {
	if token == "" {
		return slog.String(FieldCredential, "")
	}
	sum := sha256.Sum256([]byte(token))
	return slog.String(FieldCredential, hex.EncodeToString(sum[:4]))
}
