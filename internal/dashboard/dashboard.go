// Package dashboard is the map a browser session looks at: one IncidentMap
// attached to an in-process scene, with the marker interactions and resize
// events the HTTP surface forwards.
package dashboard

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/road-incident-map/internal/adapter/scene"
	"github.com/couchcryptid/road-incident-map/internal/domain"
	"github.com/couchcryptid/road-incident-map/internal/mapview"
	"github.com/couchcryptid/road-incident-map/internal/observability"
)

// Options configures a Dashboard.
type Options struct {
	Region         domain.Region
	Size           scene.Size
	PopupCacheSize int
	Clock          clockwork.Clock
	Metrics        *observability.Metrics
	Logger         *slog.Logger
}

// Dashboard owns the map for its lifetime. It is attached on creation and
// detached by Close.
type Dashboard struct {
	im      *mapview.IncidentMap
	m       *scene.Map
	bus     *scene.ResizeBus
	snap    *scene.Snapshotter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates an attached dashboard with no incidents.
func New(opts Options) *Dashboard {
	if opts.Region == (domain.Region{}) {
		opts.Region = domain.DefaultRegion
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	bus := scene.NewResizeBus(opts.Size)
	m := scene.NewMap(bus)
	im := mapview.NewIncidentMap(mapview.Options{
		Region: opts.Region,
		Resize: bus,
		Clock:  opts.Clock,
	})
	im.OnAttach(m)

	popups := scene.NewPopupRenderer(opts.PopupCacheSize, opts.Metrics)
	return &Dashboard{
		im:      im,
		m:       m,
		bus:     bus,
		snap:    scene.NewSnapshotter(opts.Clock, opts.Region, popups, opts.Logger),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// Update replaces the incident set and returns the resulting scene.
func (d *Dashboard) Update(records []domain.IncidentRecord) scene.Scene {
	summary := d.im.OnDataChange(records)

	d.metrics.IncidentsDropped.Add(float64(summary.Dropped))
	d.metrics.LiveMarkers.Set(float64(summary.Plotted))
	if summary.HeatReplaced {
		d.metrics.HeatReplacements.Inc()
	}
	if summary.Dropped > 0 {
		d.logger.Debug("incidents left off the map", "dropped_count", summary.Dropped, "incident_count", summary.Received)
	}
	d.logger.Info("map updated",
		"incident_count", summary.Received,
		"plotted_count", summary.Plotted,
		"viewport_mode", summary.Viewport.Mode.String(),
		"heat_attached", summary.HeatAttached,
	)

	return d.Scene()
}

// Scene snapshots the current map, including open tooltips and popups.
func (d *Dashboard) Scene() scene.Scene {
	var sc scene.Scene
	d.im.Inspect(func(st mapview.State) { sc = d.snap.Snapshot(d.m, st) })
	return sc
}

// Marker returns the view of one marker.
func (d *Dashboard) Marker(key string) (scene.MarkerView, bool) {
	return d.withMarker(key, func(*mapview.Marker) {})
}

// Hover opens a marker's tooltip.
func (d *Dashboard) Hover(key string) (scene.MarkerView, bool) {
	return d.withMarker(key, (*mapview.Marker).Hover)
}

// Unhover closes a marker's tooltip.
func (d *Dashboard) Unhover(key string) (scene.MarkerView, bool) {
	return d.withMarker(key, (*mapview.Marker).Unhover)
}

// Click toggles a marker's popup.
func (d *Dashboard) Click(key string) (scene.MarkerView, bool) {
	return d.withMarker(key, (*mapview.Marker).Click)
}

// ViewDetails runs a marker's detail action through nav. found is false for
// an unknown key; navigated is false when the incident has no identifier.
func (d *Dashboard) ViewDetails(key string, nav mapview.Navigator) (found, navigated bool) {
	found = d.im.WithMarker(key, func(mk *mapview.Marker) {
		navigated = mk.ViewDetails(nav)
	})
	return found, navigated
}

// Resize reports a new container size.
func (d *Dashboard) Resize(s scene.Size) {
	d.bus.Resize(s)
}

// Close detaches the map, releasing the heat layer, markers and resize
// listener. Scene keeps working and reports the unattached state.
func (d *Dashboard) Close() {
	d.im.OnDetach()
	d.metrics.LiveMarkers.Set(0)
}

func (d *Dashboard) withMarker(key string, fn func(*mapview.Marker)) (scene.MarkerView, bool) {
	var view scene.MarkerView
	ok := d.im.WithMarker(key, func(mk *mapview.Marker) {
		fn(mk)
		view = d.snap.MarkerViewOf(mk)
	})
	return view, ok
}
