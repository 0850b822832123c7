package mapview

import (
	"sync"

	"github.com/golang/geo/s2"

	"github.com/couchcryptid/road-incident-map/internal/domain"
)

// --- fakes ---

type viewCall struct {
	center domain.LatLng
	zoom   int
}

type fitCall struct {
	bounds s2.Rect
	opts   FitOptions
}

type fakeMap struct {
	mu            sync.Mutex
	layers        []Layer
	adds          int
	removes       int
	views         []viewCall
	fits          []fitCall
	invalidations int
}

func (f *fakeMap) SetView(center domain.LatLng, zoom int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, viewCall{center: center, zoom: zoom})
}

func (f *fakeMap) FitBounds(bounds s2.Rect, opts FitOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fits = append(f.fits, fitCall{bounds: bounds, opts: opts})
}

func (f *fakeMap) AddLayer(l Layer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, live := range f.layers {
		if live == l {
			return
		}
	}
	f.adds++
	f.layers = append(f.layers, l)
}

func (f *fakeMap) RemoveLayer(l Layer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, live := range f.layers {
		if live == l {
			f.removes++
			f.layers = append(f.layers[:i], f.layers[i+1:]...)
			return
		}
	}
}

func (f *fakeMap) InvalidateSize() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidations++
}

func (f *fakeMap) liveLayers(kind LayerKind) []Layer {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Layer
	for _, l := range f.layers {
		if l.Kind() == kind {
			out = append(out, l)
		}
	}
	return out
}

func (f *fakeMap) invalidationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidations
}

type fakeResizeSource struct {
	mu           sync.Mutex
	subs         map[int]func()
	next         int
	unsubscribes int
}

func newFakeResizeSource() *fakeResizeSource {
	return &fakeResizeSource{subs: map[int]func(){}}
}

func (f *fakeResizeSource) OnResize(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribes++
		delete(f.subs, id)
	}
}

func (f *fakeResizeSource) fire() {
	f.mu.Lock()
	subs := make([]func(), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (f *fakeResizeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeResizeSource) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribes
}

// --- helpers ---

func incident(id string, lat, lng float64, severity string) domain.IncidentRecord {
	return domain.IncidentRecord{
		IncidentID: id,
		Latitude:   domain.Num(lat),
		Longitude:  domain.Num(lng),
		Severity:   &domain.SeverityDescriptor{Name: severity},
	}
}

func points(intensities ...float64) []domain.ValidatedPoint {
	out := make([]domain.ValidatedPoint, len(intensities))
	for i, v := range intensities {
		out[i] = domain.ValidatedPoint{Lat: 1 + float64(i)*0.1, Lng: 37, Intensity: v}
	}
	return out
}
