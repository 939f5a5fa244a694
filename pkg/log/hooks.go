package log

import "strings"

// RedactedValue replaces the value of redacted fields.
const RedactedValue = "[REDACTED]"

// DefaultRedactedFields are redacted by every logger built from a Config.
var DefaultRedactedFields = []string{"password", "token", "cookie", "authorization"}

// RedactionHook redacts sensitive values from log entries. Field names match
// case-insensitively.
type RedactionHook struct {
	fields map[string]struct{}
}

// NewRedactionHook creates a new redaction hook.
func NewRedactionHook(fields []string) *RedactionHook {
	h := &RedactionHook{fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		h.fields[strings.ToLower(f)] = struct{}{}
	}
	return h
}

// Levels returns the levels this hook should be called for.
func (h *RedactionHook) Levels() []Level {
	return []Level{DebugLevel, InfoLevel, WarnLevel, ErrorLevel, FatalLevel}
}

// Fire redacts matching fields in place.
func (h *RedactionHook) Fire(entry *Entry) error {
	for k := range entry.Fields {
		if _, ok := h.fields[strings.ToLower(k)]; ok {
			entry.Fields[k] = RedactedValue
		}
	}
	return nil
}
