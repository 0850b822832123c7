package scene

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/road-incident-map/internal/domain"
	"github.com/couchcryptid/road-incident-map/internal/mapview"
)

// Bounds is a lat/lng box in degrees.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// View is where the map is looking. Bounds is set when the view was fitted to
// the incidents.
type View struct {
	Mode   string        `json:"mode"`
	Center domain.LatLng `json:"center"`
	Zoom   int           `json:"zoom"`
	Bounds *Bounds       `json:"bounds,omitempty"`
}

// Heat is the live heat layer.
type Heat struct {
	Options mapview.HeatOptions     `json:"options"`
	Points  []domain.ValidatedPoint `json:"points"`
}

// MarkerView is one marker as the browser draws it.
type MarkerView struct {
	Key         string          `json:"key"`
	IncidentID  string          `json:"incident_id,omitempty"`
	Lat         float64         `json:"lat"`
	Lng         float64         `json:"lng"`
	Severity    domain.Severity `json:"severity"`
	Color       string          `json:"color"`
	Tooltip     mapview.Tooltip `json:"tooltip"`
	TooltipOpen bool            `json:"tooltip_open"`
	Popup       mapview.Popup   `json:"popup"`
	PopupOpen   bool            `json:"popup_open"`
	PopupHTML   string          `json:"popup_html"`
	DetailPath  string          `json:"detail_path,omitempty"`
}

// Scene is the serialisable state of the map at one instant.
type Scene struct {
	ID          uuid.UUID             `json:"id"`
	GeneratedAt time.Time             `json:"generated_at"`
	View        View                  `json:"view"`
	Size        Size                  `json:"size"`
	Heat        *Heat                 `json:"heat,omitempty"`
	Markers     []MarkerView          `json:"markers"`
	Dropped     int                   `json:"dropped"`
	Stats       domain.DashboardStats `json:"stats"`
}

// Snapshotter turns map state into Scenes.
type Snapshotter struct {
	clock  clockwork.Clock
	region domain.Region
	popups *PopupRenderer
	logger *slog.Logger
}

// NewSnapshotter creates a Snapshotter. A nil clock means the real clock.
func NewSnapshotter(clock clockwork.Clock, region domain.Region, popups *PopupRenderer, logger *slog.Logger) *Snapshotter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Snapshotter{clock: clock, region: region, popups: popups, logger: logger}
}

// Snapshot builds a Scene from st and the rendered state of m. Call it from
// inside IncidentMap.Inspect so both describe the same data change.
func (s *Snapshotter) Snapshot(m *Map, st mapview.State) Scene {
	center, zoom := m.View()
	view := View{Mode: st.Viewport.Mode.String(), Center: center, Zoom: zoom}
	if st.Viewport.Mode == domain.ViewportFitted {
		b := st.Viewport.Bounds
		view.Bounds = &Bounds{
			South: b.Lo().Lat.Degrees(),
			West:  b.Lo().Lng.Degrees(),
			North: b.Hi().Lat.Degrees(),
			East:  b.Hi().Lng.Degrees(),
		}
	}

	sc := Scene{
		ID:          uuid.New(),
		GeneratedAt: s.clock.Now().UTC(),
		View:        view,
		Size:        m.Size(),
		Markers:     make([]MarkerView, 0, len(st.Markers)),
		Dropped:     len(st.Records) - len(st.Plotted),
		Stats:       domain.ComputeStats(st.Records, s.region),
	}
	if st.Heat != nil {
		sc.Heat = &Heat{Options: st.Heat.Options, Points: st.Heat.Points}
	}

	for _, mk := range st.Markers {
		sc.Markers = append(sc.Markers, s.MarkerViewOf(mk))
	}
	return sc
}

// MarkerViewOf is the browser view of a single marker.
func (s *Snapshotter) MarkerViewOf(mk *mapview.Marker) MarkerView {
	html, err := s.popups.Render(mk)
	if err != nil {
		s.logger.Warn("popup render failed", "marker_key", mk.Key, "error", err)
	}
	return MarkerView{
		Key:         mk.Key,
		IncidentID:  mk.IncidentID,
		Lat:         mk.Position.Lat,
		Lng:         mk.Position.Lng,
		Severity:    mk.Severity,
		Color:       mk.Color,
		Tooltip:     mk.Tooltip,
		TooltipOpen: mk.TooltipOpen(),
		Popup:       mk.Popup,
		PopupOpen:   mk.PopupOpen(),
		PopupHTML:   html,
		DetailPath:  mk.Popup.DetailPath,
	}
}
