package models

import "fmt"

// Severity is the risk label attached to a sensitive action
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Severities lists the closed set of severity labels, most severe first
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// IsValid reports whether s belongs to the closed severity set.
// Matching is case-sensitive: "critical" is not a severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// String implements fmt.Stringer
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity converts a raw label into a Severity
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown severity %q", raw)
	}
	return s, nil
}
