package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

var reHandle = regexp.MustCompile(`^[a-z0-9_]{1,15}$`)

// NormalizeUsername trims whitespace, strips a leading "@" and lowercases the
// handle. X handles are case-insensitive, so the result is the cache and
// registry key.
func NormalizeUsername(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "@")
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if !reHandle.MatchString(s) {
		return "", &ValidationError{Field: "username", Value: raw, Reason: "expected 1-15 letters, digits or underscores"}
	}
	return s, nil
}
