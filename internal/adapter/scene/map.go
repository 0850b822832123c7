// Package scene is the in-process map the controllers drive. It keeps the
// view, container size and live layers, and serialises them as a Scene for
// the browser.
package scene

import (
	"math"
	"sync"

	"github.com/golang/geo/s2"

	"github.com/couchcryptid/road-incident-map/internal/domain"
	"github.com/couchcryptid/road-incident-map/internal/mapview"
)

// tileSize is the Web Mercator tile edge in pixels at zoom 0.
const tileSize = 256

// Map implements mapview.Map. Its lock is always the innermost one taken.
type Map struct {
	sizes SizeProvider

	mu            sync.Mutex
	center        domain.LatLng
	zoom          int
	size          Size
	layers        []mapview.Layer
	invalidations int
}

// NewMap creates a map sized from sizes, centred on the default view.
func NewMap(sizes SizeProvider) *Map {
	return &Map{
		sizes:  sizes,
		center: domain.DefaultCenter,
		zoom:   domain.DefaultZoom,
		size:   sizes.Size(),
	}
}

func (m *Map) SetView(center domain.LatLng, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = center
	m.zoom = zoom
}

// FitBounds centres on bounds at the largest zoom that shows all of it inside
// the container less padding on every side, capped at opts.MaxZoom.
func (m *Map) FitBounds(bounds s2.Rect, opts mapview.FitOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bounds.IsEmpty() {
		return
	}
	m.center = domain.LatLngFromS2(bounds.Center())
	m.zoom = FitZoom(bounds, m.size, opts)
}

// AddLayer adds l unless it is already live.
func (m *Map) AddLayer(l mapview.Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexLocked(l) >= 0 {
		return
	}
	m.layers = append(m.layers, l)
}

// RemoveLayer removes l if it is live.
func (m *Map) RemoveLayer(l mapview.Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(l); i >= 0 {
		m.layers = append(m.layers[:i], m.layers[i+1:]...)
	}
}

// InvalidateSize re-reads the container size.
func (m *Map) InvalidateSize() {
	size := m.sizes.Size()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size = size
	m.invalidations++
}

// View returns the current centre and zoom.
func (m *Map) View() (domain.LatLng, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center, m.zoom
}

// Size returns the size the map last rendered at.
func (m *Map) Size() Size {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Invalidations counts InvalidateSize calls.
func (m *Map) Invalidations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidations
}

// Layers returns the live layers of kind, in the order they were added.
func (m *Map) Layers(kind mapview.LayerKind) []mapview.Layer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mapview.Layer
	for _, l := range m.layers {
		if l.Kind() == kind {
			out = append(out, l)
		}
	}
	return out
}

func (m *Map) indexLocked(l mapview.Layer) int {
	for i, live := range m.layers {
		if live == l {
			return i
		}
	}
	return -1
}

// FitZoom is the Web Mercator zoom at which bounds fits in size with padding,
// clamped to [0, opts.MaxZoom]. A degenerate rect fits at MaxZoom.
func FitZoom(bounds s2.Rect, size Size, opts mapview.FitOptions) int {
	w := float64(size.Width - 2*opts.PaddingPx)
	h := float64(size.Height - 2*opts.PaddingPx)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	lngFrac := (bounds.Hi().Lng.Degrees() - bounds.Lo().Lng.Degrees()) / 360
	latFrac := (mercatorY(bounds.Hi().Lat.Radians()) - mercatorY(bounds.Lo().Lat.Radians())) / (2 * math.Pi)

	zoom := math.Inf(1)
	if lngFrac > 0 {
		zoom = math.Min(zoom, math.Log2(w/tileSize/lngFrac))
	}
	if latFrac > 0 {
		zoom = math.Min(zoom, math.Log2(h/tileSize/latFrac))
	}

	if math.IsInf(zoom, 1) || zoom > float64(opts.MaxZoom) {
		return opts.MaxZoom
	}
	if zoom < 0 {
		return 0
	}
	return int(math.Floor(zoom))
}

func mercatorY(lat float64) float64 {
	return math.Log(math.Tan(math.Pi/4 + lat/2))
}
