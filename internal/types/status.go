package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the outcome of a verification check.
// Unrecognised values are preserved verbatim so renderers can detect them.
type Status string

const (
	StatusPass Status = "Pass"
	StatusFail Status = "Fail"
)

var statusAliases = map[string]Status{
	"pass":   StatusPass,
	"passed": StatusPass,
	"fail":   StatusFail,
	"failed": StatusFail,
}

// NormalizeStatus maps known spellings onto StatusPass/StatusFail and keeps anything
// else as-is.
func NormalizeStatus(raw string) Status {
	trimmed := strings.TrimSpace(raw)
	if s, ok := statusAliases[strings.ToLower(trimmed)]; ok {
		return s
	}
	return Status(trimmed)
}

// ParseStatus is NormalizeStatus that rejects unknown values.
func ParseStatus(raw string) (Status, error) {
	s := NormalizeStatus(raw)
	if !s.Known() {
		return "", fmt.Errorf("unknown result status %q", raw)
	}
	return s, nil
}

// Known reports whether s is Pass or Fail.
func (s Status) Known() bool {
	return s == StatusPass || s == StatusFail
}

// UnmarshalJSON normalizes the decoded string.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	*s = NormalizeStatus(raw)
	return nil
}
