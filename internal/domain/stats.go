package domain

import (
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
)

// clock is "now" for the relative labels in DashboardStats.
var clock = clockwork.NewRealClock()

// SetClock replaces the time ComputeStats measures against; nil restores the
// wall clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
}

// recentLimit is how many incidents the "recent activity" strip lists.
const recentLimit = 4

// RecentIncident is one row of the recent activity strip.
type RecentIncident struct {
	IncidentID string   `json:"incident_id,omitempty"`
	TypeName   string   `json:"type_name"`
	Severity   Severity `json:"severity"`
	Status     string   `json:"status,omitempty"`
	CreatedAt  string   `json:"created_at,omitempty"`
	Ago        string   `json:"ago"`
}

// DashboardStats are the counters shown alongside the map. They are derived
// from the raw incident set, not only the plottable subset.
type DashboardStats struct {
	Total          int              `json:"total"`
	Active         int              `json:"active"`
	Verified       int              `json:"verified"`
	Plotted        int              `json:"plotted"`
	BySeverity     map[string]int   `json:"by_severity"`
	LastActivityAt *time.Time       `json:"last_activity_at,omitempty"`
	LastActivity   string           `json:"last_activity"`
	Recent         []RecentIncident `json:"recent"`
}

// ComputeStats derives dashboard counters from records as of now. Active means
// any status other than closed; verified means verification_status is
// "verified". Records whose created_at does not parse sort last in the recent
// strip.
func ComputeStats(records []IncidentRecord, region Region) DashboardStats {
	now := clock.Now()
	stats := DashboardStats{
		Total:        len(records),
		BySeverity:   map[string]int{},
		LastActivity: "No activity",
		Recent:       []RecentIncident{},
	}

	type dated struct {
		rec IncidentRecord
		at  time.Time
		ok  bool
	}
	sorted := make([]dated, 0, len(records))

	for _, rec := range records {
		if rec.Status != "closed" {
			stats.Active++
		}
		if rec.VerificationStatus == "verified" {
			stats.Verified++
		}
		if _, _, ok := region.Locate(rec); ok {
			stats.Plotted++
		}
		stats.BySeverity[NormalizeSeverity(rec.Severity).String()]++

		at, ok := ParseTimestamp(rec.CreatedAt)
		sorted = append(sorted, dated{rec: rec, at: at, ok: ok})
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ok != sorted[j].ok {
			return sorted[i].ok
		}
		return sorted[i].at.After(sorted[j].at)
	})

	for i, d := range sorted {
		if i == recentLimit {
			break
		}
		ago := "Unknown"
		if d.ok {
			ago = humanize.RelTime(d.at, now, "ago", "from now")
		}
		stats.Recent = append(stats.Recent, RecentIncident{
			IncidentID: d.rec.IncidentID,
			TypeName:   d.rec.TypeName("Unknown Type"),
			Severity:   NormalizeSeverity(d.rec.Severity),
			Status:     d.rec.Status,
			CreatedAt:  d.rec.CreatedAt,
			Ago:        ago,
		})
	}

	if len(sorted) > 0 && sorted[0].ok {
		at := sorted[0].at
		stats.LastActivityAt = &at
		stats.LastActivity = humanize.RelTime(at, now, "ago", "from now")
	}
	return stats
}
