package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Number is a numeric field the incident API may send as a JSON number or as a
// numeric string. Valid is false when the value is absent or does not parse to
// a finite float; Raw keeps the original text either way.
type Number struct {
	Raw   string
	Value float64
	Valid bool
}

// ParseNumber parses s the way the dashboard always has: surrounding whitespace
// is ignored and anything that is not a finite float is invalid.
func ParseNumber(s string) Number {
	n := Number{Raw: s}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return n
	}
	n.Value = v
	n.Valid = true
	return n
}

// Num returns a valid Number holding v.
func Num(v float64) Number {
	return Number{Raw: strconv.FormatFloat(v, 'f', -1, 64), Value: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

// UnmarshalJSON accepts numbers, numeric strings and null. Other JSON values
// decode to an invalid Number rather than an error.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*n = Number{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = Number{Raw: string(data)}
			return nil
		}
		*n = ParseNumber(s)
	default:
		*n = ParseNumber(string(data))
	}
	return nil
}

// MarshalJSON writes valid values as numbers, unparsed values as their raw
// string, and empty values as null.
func (n Number) MarshalJSON() ([]byte, error) {
	switch {
	case n.Valid:
		return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
	case n.Raw != "":
		return json.Marshal(n.Raw)
	default:
		return []byte("null"), nil
	}
}

// SeverityDescriptor is the nested severity object. Either field may be empty.
type SeverityDescriptor struct {
	Level string `json:"level,omitempty"`
	Name  string `json:"name,omitempty"`
}

// UnmarshalJSON also accepts a bare string, which older payloads use for the
// level code. Non-object, non-string values leave the descriptor empty.
func (d *SeverityDescriptor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*d = SeverityDescriptor{}
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			d.Level = s
		}
	case '{':
		type plain SeverityDescriptor
		var p plain
		if err := json.Unmarshal(data, &p); err == nil {
			*d = SeverityDescriptor(p)
		}
	}
	return nil
}

// Label is the text shown on badges: the level code, else the name, else "Unknown".
func (d *SeverityDescriptor) Label() string {
	if d == nil {
		return "Unknown"
	}
	if d.Level != "" {
		return d.Level
	}
	if d.Name != "" {
		return d.Name
	}
	return "Unknown"
}

// IncidentType is the nested incident type. The write serializer accepts a bare
// numeric id in the same field; on read that carries no display data and
// decodes to an empty type.
type IncidentType struct {
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
}

func (t *IncidentType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = IncidentType{}
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	type plain IncidentType
	var p plain
	if err := json.Unmarshal(data, &p); err == nil {
		*t = IncidentType(p)
	}
	return nil
}

// IncidentRecord is one incident as listed by the incident API.
type IncidentRecord struct {
	IncidentID         string              `json:"incident_id,omitempty"`
	Latitude           Number              `json:"latitude"`
	Longitude          Number              `json:"longitude"`
	Severity           *SeverityDescriptor `json:"severity,omitempty"`
	Status             string              `json:"status,omitempty"`
	IncidentType       *IncidentType       `json:"incident_type,omitempty"`
	Description        string              `json:"description,omitempty"`
	RoadName           string              `json:"road_name,omitempty"`
	CreatedAt          string              `json:"created_at,omitempty"`
	UpdatedAt          string              `json:"updated_at,omitempty"`
	VerificationStatus string              `json:"verification_status,omitempty"`
	AIConfidenceScore  *Number             `json:"ai_confidence_score,omitempty"`
	Weather            string              `json:"weather,omitempty"`
	ReporterEmail      string              `json:"reporter_email,omitempty"`
	IsAnonymous        bool                `json:"is_anonymous,omitempty"`
}

// TypeName returns the incident type name, or fallback when there is none.
func (r IncidentRecord) TypeName(fallback string) string {
	if r.IncidentType == nil || r.IncidentType.Name == "" {
		return fallback
	}
	return r.IncidentType.Name
}

// Category returns the incident type category, or "".
func (r IncidentRecord) Category() string {
	if r.IncidentType == nil {
		return ""
	}
	return r.IncidentType.Category
}

// IncidentQuery selects the incidents the map shows: one creation-time window
// and an optional status. An empty Status (or "all") selects every status.
type IncidentQuery struct {
	CreatedFrom time.Time
	CreatedTo   time.Time
	Status      string
}

// QueryForDay builds the query for every incident created on day's calendar
// date in loc, from 00:00:00.000 to 23:59:59.999.
func QueryForDay(day time.Time, loc *time.Location, status string) IncidentQuery {
	if loc == nil {
		loc = time.UTC
	}
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	if strings.EqualFold(status, "all") {
		status = ""
	}
	return IncidentQuery{CreatedFrom: start, CreatedTo: end, Status: status}
}
