package domain

import "strings"

// Severity is the canonical severity of an incident.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityCritical
	SeverityHigh
	SeverityMedium
	SeverityLow
)

// severityVocabulary folds both upstream vocabularies, lower-cased.
var severityVocabulary = map[string]Severity{
	"p1":       SeverityCritical,
	"critical": SeverityCritical,
	"p2":       SeverityHigh,
	"high":     SeverityHigh,
	"p3":       SeverityMedium,
	"medium":   SeverityMedium,
	"p4":       SeverityLow,
	"low":      SeverityLow,
}

// NormalizeSeverity maps a descriptor to a Severity. A non-empty level decides
// on its own; the name is only consulted when the level is empty. Matching is
// case-insensitive and ignores surrounding whitespace. Anything unmatched,
// including a nil descriptor, is SeverityUnknown.
func NormalizeSeverity(d *SeverityDescriptor) Severity {
	if d == nil {
		return SeverityUnknown
	}
	code := strings.TrimSpace(d.Level)
	if code == "" {
		code = strings.TrimSpace(d.Name)
	}
	return ParseSeverity(code)
}

// ParseSeverity maps a single code or name to a Severity.
func ParseSeverity(s string) Severity {
	if sev, ok := severityVocabulary[strings.ToLower(strings.TrimSpace(s))]; ok {
		return sev
	}
	return SeverityUnknown
}

// Color is the marker and badge colour.
func (s Severity) Color() string {
	switch s {
	case SeverityCritical:
		return "#FF0000"
	case SeverityHigh:
		return "#FF6600"
	case SeverityMedium:
		return "#FFCC00"
	case SeverityLow:
		return "#00CC00"
	default:
		return "#808080"
	}
}

// Intensity is the heat-layer weight in [0,1].
func (s Severity) Intensity() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.7
	case SeverityLow:
		return 0.3
	default:
		return 0.5
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	*s = ParseSeverity(string(b))
	return nil
}
