package mapview

import (
	"fmt"
	"net/url"

	"github.com/couchcryptid/road-incident-map/internal/domain"
)

// DetailPath is the application route for one incident's detail view.
func DetailPath(incidentID string) string {
	return "/incidents?incident=" + url.QueryEscape(incidentID)
}

// Tooltip is the hover summary of a marker.
type Tooltip struct {
	Title    string `json:"title"`
	TypeName string `json:"type_name"`
	Severity string `json:"severity"`
}

// Popup is the click-through detail card of a marker. Empty optional fields
// are omitted from the rendered card.
type Popup struct {
	Title         string             `json:"title"`
	SeverityLabel string             `json:"severity_label"`
	SeverityColor string             `json:"severity_color"`
	Status        string             `json:"status"`
	TypeName      string             `json:"type_name"`
	Category      string             `json:"category,omitempty"`
	RoadName      string             `json:"road_name,omitempty"`
	Coordinates   string             `json:"coordinates"`
	Weather       string             `json:"weather,omitempty"`
	Verification  string             `json:"verification,omitempty"`
	Confidence    *domain.Confidence `json:"confidence,omitempty"`
	Description   string             `json:"description,omitempty"`
	Reported      string             `json:"reported,omitempty"`
	Updated       string             `json:"updated,omitempty"`
	ReporterEmail string             `json:"reporter_email,omitempty"`
	Anonymous     bool               `json:"anonymous,omitempty"`
	DetailPath    string             `json:"detail_path,omitempty"`
}

// Marker is one incident on the map.
type Marker struct {
	Key        string
	IncidentID string
	Position   domain.LatLng
	Severity   domain.Severity
	Color      string
	Tooltip    Tooltip
	Popup      Popup
	UpdatedAt  string

	tooltipOpen bool
	popupOpen   bool
}

func (*Marker) Kind() LayerKind { return LayerMarker }

// Hover opens the tooltip.
func (m *Marker) Hover() { m.tooltipOpen = true }

// Unhover closes the tooltip.
func (m *Marker) Unhover() { m.tooltipOpen = false }

// Click toggles the popup. The tooltip is unaffected.
func (m *Marker) Click() { m.popupOpen = !m.popupOpen }

// ClosePopup closes the popup.
func (m *Marker) ClosePopup() { m.popupOpen = false }

func (m *Marker) TooltipOpen() bool { return m.tooltipOpen }

func (m *Marker) PopupOpen() bool { return m.popupOpen }

// ViewDetails runs the popup's detail action through nav. Markers for
// incidents without an identifier have no action and return false.
func (m *Marker) ViewDetails(nav Navigator) bool {
	if m.IncidentID == "" || nav == nil {
		return false
	}
	nav.Navigate(DetailPath(m.IncidentID))
	return true
}

// NewMarker builds the marker for a plotted incident.
func NewMarker(p domain.PlottedIncident) *Marker {
	r := p.Record
	color := p.Severity.Color()
	title := r.IncidentID
	if title == "" {
		title = fmt.Sprintf("Incident #%d", p.Index+1)
	}
	label := r.Severity.Label()

	popup := Popup{
		Title:         title,
		SeverityLabel: label,
		SeverityColor: color,
		Status:        orDefault(r.Status, "Unknown"),
		TypeName:      r.TypeName("Unknown"),
		Category:      domain.Capitalize(r.Category()),
		RoadName:      r.RoadName,
		Coordinates:   domain.FormatCoordinates(p.Lat, p.Lng),
		Weather:       domain.Capitalize(r.Weather),
		Verification:  domain.Capitalize(r.VerificationStatus),
		Description:   r.Description,
		Anonymous:     r.IsAnonymous,
	}
	if r.AIConfidenceScore != nil && r.AIConfidenceScore.Valid {
		c := domain.FormatConfidence(r.AIConfidenceScore.Value)
		popup.Confidence = &c
	}
	if r.CreatedAt != "" {
		popup.Reported = domain.FormatTimestamp(r.CreatedAt)
	}
	if r.UpdatedAt != "" && r.UpdatedAt != r.CreatedAt {
		popup.Updated = domain.FormatTimestamp(r.UpdatedAt)
	}
	if r.ReporterEmail != "" && !r.IsAnonymous {
		popup.ReporterEmail = r.ReporterEmail
	}
	if r.IncidentID != "" {
		popup.DetailPath = DetailPath(r.IncidentID)
	}

	return &Marker{
		Key:        markerKey(p),
		IncidentID: r.IncidentID,
		Position:   domain.LatLng{Lat: p.Lat, Lng: p.Lng},
		Severity:   p.Severity,
		Color:      color,
		Tooltip: Tooltip{
			Title:    title,
			TypeName: r.TypeName("Unknown Type"),
			Severity: label,
		},
		Popup:     popup,
		UpdatedAt: r.UpdatedAt,
	}
}

func markerKey(p domain.PlottedIncident) string {
	if p.Record.IncidentID != "" {
		return p.Record.IncidentID
	}
	return fmt.Sprintf("incident-%d", p.Index)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// MarkerLayer renders one Marker per plotted incident. The whole set is
// replaced on every data change.
type MarkerLayer struct {
	m       Map
	markers []*Marker
	byKey   map[string]*Marker
	pending []domain.PlottedIncident
}

// NewMarkerLayer creates an empty marker layer.
func NewMarkerLayer() *MarkerLayer {
	return &MarkerLayer{byKey: map[string]*Marker{}}
}

// OnAttach binds the layer to m and renders the current incidents.
func (l *MarkerLayer) OnAttach(m Map) {
	if l.m != nil && l.m != m {
		l.OnDetach()
	}
	l.m = m
	l.render()
}

// OnDataChange replaces every marker with markers for plotted.
func (l *MarkerLayer) OnDataChange(plotted []domain.PlottedIncident) {
	l.pending = append([]domain.PlottedIncident(nil), plotted...)
	l.render()
}

// OnDetach removes every marker from the map and releases it.
func (l *MarkerLayer) OnDetach() {
	l.clear()
	l.m = nil
}

// Markers returns the live markers in incident order.
func (l *MarkerLayer) Markers() []*Marker {
	return l.markers
}

// Marker looks a live marker up by key.
func (l *MarkerLayer) Marker(key string) (*Marker, bool) {
	m, ok := l.byKey[key]
	return m, ok
}

func (l *MarkerLayer) render() {
	l.clear()
	if l.m == nil {
		return
	}

	l.markers = make([]*Marker, 0, len(l.pending))
	for _, p := range l.pending {
		mk := NewMarker(p)
		// Entries sharing an identifier are still distinct markers; later
		// ones get a numeric suffix, starting at their position, that no
		// live key uses yet.
		if _, dup := l.byKey[mk.Key]; dup {
			base := mk.Key
			for n := p.Index; ; n++ {
				mk.Key = fmt.Sprintf("%s~%d", base, n)
				if _, taken := l.byKey[mk.Key]; !taken {
					break
				}
			}
		}
		l.byKey[mk.Key] = mk
		l.markers = append(l.markers, mk)
	}
	for _, mk := range l.markers {
		l.m.AddLayer(mk)
	}
}

func (l *MarkerLayer) clear() {
	if l.m != nil {
		for _, mk := range l.markers {
			l.m.RemoveLayer(mk)
		}
	}
	l.markers = nil
	l.byKey = map[string]*Marker{}
}
