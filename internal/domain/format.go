package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayZone is East Africa Time. Kenya has no DST, so a fixed zone avoids
// depending on tzdata in the container image.
var DisplayZone = time.FixedZone("EAT", 3*60*60)

const displayLayout = "2 Jan 2006, 15:04"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats the incident API emits.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders raw for popups. Empty input is "Unknown"; input
// that does not parse is shown as-is.
func FormatTimestamp(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Unknown"
	}
	t, ok := ParseTimestamp(raw)
	if !ok {
		return raw
	}
	return t.In(DisplayZone).Format(displayLayout)
}

// Capitalize raises the first letter of each word ("heavy rain" becomes
// "Heavy Rain") and leaves the rest of the word as sent, so "IoT sensor"
// becomes "IoT Sensor".
func Capitalize(s string) string {
	if s == "" {
		return ""
	}
	// Casers carry state, so each call gets its own.
	return cases.Title(language.English, cases.NoLower).String(s)
}

// Confidence is the display form of an AI confidence score.
type Confidence struct {
	Label    string  `json:"label"`
	WidthPct float64 `json:"width_pct"`
}

// FormatConfidence formats score (0–100) to one decimal place. The label shows
// the score as given; the bar width is clamped to [0,100].
func FormatConfidence(score float64) Confidence {
	width := score
	if width < 0 {
		width = 0
	}
	if width > 100 {
		width = 100
	}
	return Confidence{Label: fmt.Sprintf("%.1f%%", score), WidthPct: width}
}

// FormatCoordinates renders a position to four decimal places.
func FormatCoordinates(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}
