package mapview

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/road-incident-map/internal/domain"
)

// Options configures an IncidentMap.
type Options struct {
	Region      domain.Region
	Heat        HeatOptions
	Resize      ResizeSource
	Clock       clockwork.Clock
	ResizeDelay time.Duration
}

// RenderSummary describes the effect of one data change.
type RenderSummary struct {
	Received     int
	Plotted      int
	Dropped      int
	HeatAttached bool
	HeatReplaced bool
	Viewport     domain.Viewport
}

// State is a consistent read of an IncidentMap, valid only inside Inspect.
type State struct {
	Attached bool
	Records  []domain.IncidentRecord
	Plotted  []domain.PlottedIncident
	Heat     *HeatLayer
	Markers  []*Marker
	Viewport domain.Viewport
}

// IncidentMap drives the heat layer, markers, viewport and resize handling
// for one map from a single incident feed. All methods are safe for
// concurrent use; a data change is applied to every controller before any
// reader can observe the map again.
type IncidentMap struct {
	region domain.Region

	mu      sync.Mutex
	m       Map
	records []domain.IncidentRecord
	plotted []domain.PlottedIncident

	heat    *HeatLayerController
	markers *MarkerLayer
	bounds  *BoundsController
	resize  *ResizeSynchronizer
}

// NewIncidentMap creates an unattached IncidentMap. Zero-valued options take
// the defaults for the deployment region.
func NewIncidentMap(opts Options) *IncidentMap {
	if opts.Region == (domain.Region{}) {
		opts.Region = domain.DefaultRegion
	}
	if opts.Heat.Radius == 0 {
		opts.Heat = DefaultHeatOptions()
	}
	if opts.ResizeDelay == 0 {
		opts.ResizeDelay = DefaultResizeDelay
	}
	return &IncidentMap{
		region:  opts.Region,
		heat:    NewHeatLayerController(opts.Heat),
		markers: NewMarkerLayer(),
		bounds:  NewBoundsController(opts.Region),
		resize:  NewResizeSynchronizer(opts.Clock, opts.ResizeDelay, opts.Resize),
	}
}

// OnAttach binds every controller to m. Incidents received earlier are
// rendered immediately.
func (im *IncidentMap) OnAttach(m Map) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.m != nil {
		im.detachLocked()
	}
	im.m = m
	im.bounds.OnAttach(m)
	im.heat.OnAttach(m)
	im.markers.OnAttach(m)
	im.resize.OnAttach(m)
}

// OnDataChange replaces the incident set.
func (im *IncidentMap) OnDataChange(records []domain.IncidentRecord) RenderSummary {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.records = append([]domain.IncidentRecord(nil), records...)
	im.plotted = im.region.Plot(im.records)

	viewport := im.bounds.OnDataChange(im.records)
	replaced := im.heat.OnDataChange(domain.HeatPoints(im.plotted))
	im.markers.OnDataChange(im.plotted)

	return RenderSummary{
		Received:     len(im.records),
		Plotted:      len(im.plotted),
		Dropped:      len(im.records) - len(im.plotted),
		HeatAttached: im.heat.Attached(),
		HeatReplaced: replaced,
		Viewport:     viewport,
	}
}

// OnDetach tears the controllers down in reverse order: the resize listener
// goes first, then markers and the heat layer. Safe to call repeatedly.
func (im *IncidentMap) OnDetach() {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.detachLocked()
}

func (im *IncidentMap) detachLocked() {
	im.resize.OnDetach()
	im.markers.OnDetach()
	im.heat.OnDetach()
	im.bounds.OnDetach()
	im.m = nil
}

// Inspect runs fn with a consistent view of the map. fn must not retain the
// State or call back into im.
func (im *IncidentMap) Inspect(fn func(State)) {
	im.mu.Lock()
	defer im.mu.Unlock()
	fn(State{
		Attached: im.m != nil,
		Records:  im.records,
		Plotted:  im.plotted,
		Heat:     im.heat.Layer(),
		Markers:  im.markers.Markers(),
		Viewport: im.bounds.Viewport(),
	})
}

// WithMarker runs fn on the marker with key, reporting whether it exists.
func (im *IncidentMap) WithMarker(key string, fn func(*Marker)) bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	mk, ok := im.markers.Marker(key)
	if !ok {
		return false
	}
	fn(mk)
	return true
}
