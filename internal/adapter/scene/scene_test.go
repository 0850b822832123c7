package scene

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/golang/geo/s2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/road-incident-map/internal/domain"
	"github.com/couchcryptid/road-incident-map/internal/mapview"
	"github.com/couchcryptid/road-incident-map/internal/observability"
)

func rect(points ...domain.LatLng) s2.Rect {
	r := s2.EmptyRect()
	for _, p := range points {
		r = r.AddPoint(p.S2())
	}
	return r
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func record(id string, lat, lng float64, severity string) domain.IncidentRecord {
	return domain.IncidentRecord{
		IncidentID: id,
		Latitude:   domain.Num(lat),
		Longitude:  domain.Num(lng),
		Severity:   &domain.SeverityDescriptor{Name: severity},
		Status:     "pending",
		CreatedAt:  "2025-03-10T09:00:00Z",
	}
}

// --- ResizeBus ---

func TestResizeBus_NotifiesAndUnsubscribes(t *testing.T) {
	bus := NewResizeBus(Size{Width: 800, Height: 600})
	var seen []Size
	unsubscribe := bus.OnResize(func() { seen = append(seen, bus.Size()) })

	bus.Resize(Size{Width: 1024, Height: 500})
	assert.Equal(t, []Size{{Width: 1024, Height: 500}}, seen)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, bus.Subscribers())

	bus.Resize(Size{Width: 320, Height: 480})
	assert.Len(t, seen, 1)
	assert.Equal(t, Size{Width: 320, Height: 480}, bus.Size())
}

// --- Map ---

func TestMap_LayerNoOps(t *testing.T) {
	m := NewMap(NewResizeBus(Size{Width: 800, Height: 600}))
	heat := &mapview.HeatLayer{}

	m.AddLayer(heat)
	m.AddLayer(heat)
	assert.Len(t, m.Layers(mapview.LayerHeat), 1)

	m.RemoveLayer(heat)
	m.RemoveLayer(heat)
	assert.Empty(t, m.Layers(mapview.LayerHeat))
}

func TestMap_InvalidateSizeRereadsContainer(t *testing.T) {
	bus := NewResizeBus(Size{Width: 800, Height: 600})
	m := NewMap(bus)

	bus.Resize(Size{Width: 1280, Height: 720})
	assert.Equal(t, Size{Width: 800, Height: 600}, m.Size())

	m.InvalidateSize()
	assert.Equal(t, Size{Width: 1280, Height: 720}, m.Size())
	assert.Equal(t, 1, m.Invalidations())
}

func TestMap_FitBoundsCentresOnRect(t *testing.T) {
	m := NewMap(NewResizeBus(Size{Width: 1024, Height: 500}))
	m.FitBounds(rect(domain.LatLng{Lat: 1, Lng: 37}, domain.LatLng{Lat: 2, Lng: 38}),
		mapview.FitOptions{PaddingPx: 50, MaxZoom: 12})

	center, zoom := m.View()
	assert.InDelta(t, 1.5, center.Lat, 1e-9)
	assert.InDelta(t, 37.5, center.Lng, 1e-9)
	assert.Equal(t, 9, zoom)
}

func TestMap_FitBoundsIgnoresEmptyRect(t *testing.T) {
	m := NewMap(NewResizeBus(Size{Width: 1024, Height: 500}))
	m.FitBounds(s2.EmptyRect(), mapview.FitOptions{PaddingPx: 50, MaxZoom: 12})

	center, zoom := m.View()
	assert.Equal(t, domain.DefaultCenter, center)
	assert.Equal(t, domain.DefaultZoom, zoom)
}

func TestFitZoom(t *testing.T) {
	opts := mapview.FitOptions{PaddingPx: 50, MaxZoom: 12}
	size := Size{Width: 1024, Height: 500}

	tests := []struct {
		name   string
		bounds s2.Rect
		want   int
	}{
		{"one degree box", rect(domain.LatLng{Lat: 1, Lng: 37}, domain.LatLng{Lat: 2, Lng: 38}), 9},
		{"whole region", rect(domain.LatLng{Lat: -5, Lng: 33}, domain.LatLng{Lat: 6, Lng: 42}), 5},
		{"tiny box capped at max zoom", rect(domain.LatLng{Lat: -1.2921, Lng: 36.8219}, domain.LatLng{Lat: -1.2920, Lng: 36.8220}), 12},
		{"single point", rect(domain.LatLng{Lat: -1.2921, Lng: 36.8219}), 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitZoom(tt.bounds, size, opts)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got, opts.MaxZoom)
		})
	}
}

func TestFitZoom_TinyContainerClampsToZero(t *testing.T) {
	world := rect(domain.LatLng{Lat: -80, Lng: -170}, domain.LatLng{Lat: 80, Lng: 170})
	assert.Equal(t, 0, FitZoom(world, Size{Width: 40, Height: 40}, mapview.FitOptions{PaddingPx: 50, MaxZoom: 12}))
}

// --- LRU ---

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", "1")
	c.put("b", "2")
	_, _ = c.get("a")
	c.put("c", "3")

	_, ok := c.get("b")
	assert.False(t, ok, "b should be evicted")
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", "1")
	c.put("a", "2")

	v, _ := c.get("a")
	assert.Equal(t, "2", v)
	assert.Equal(t, 1, c.len())
}

// --- PopupRenderer ---

func plottedMarker(t *testing.T, rec domain.IncidentRecord) *mapview.Marker {
	t.Helper()
	plotted := domain.DefaultRegion.Plot([]domain.IncidentRecord{rec})
	require.Len(t, plotted, 1)
	return mapview.NewMarker(plotted[0])
}

func TestPopupRenderer_RendersAndEscapes(t *testing.T) {
	rec := record("INC-1", -1.29, 36.82, "high")
	rec.Description = `<script>alert("x")</script>`
	rec.RoadName = "Mombasa Road"
	mk := plottedMarker(t, rec)

	html, err := NewPopupRenderer(10, observability.NewMetricsForTesting()).Render(mk)
	require.NoError(t, err)

	assert.Contains(t, html, "<h3>INC-1</h3>")
	assert.Contains(t, html, "Mombasa Road")
	assert.Contains(t, html, `href="/incidents?incident=INC-1"`)
	assert.Contains(t, html, "View Details")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
}

func TestPopupRenderer_NoActionWithoutIdentifier(t *testing.T) {
	mk := plottedMarker(t, record("", -1.29, 36.82, "low"))

	html, err := NewPopupRenderer(10, observability.NewMetricsForTesting()).Render(mk)
	require.NoError(t, err)
	assert.NotContains(t, html, "View Details")
}

func TestPopupRenderer_CachesByContent(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	r := NewPopupRenderer(10, metrics)
	mk := plottedMarker(t, record("INC-1", -1.29, 36.82, "high"))

	first, err := r.Render(mk)
	require.NoError(t, err)
	second, err := r.Render(mk)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	changed := record("INC-1", -1.29, 36.82, "high")
	changed.Status = "resolved"
	third, err := r.Render(plottedMarker(t, changed))
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	assert.InDelta(t, 1, counterValue(t, metrics.PopupCache.WithLabelValues("hit")), 1e-9)
	assert.InDelta(t, 2, counterValue(t, metrics.PopupCache.WithLabelValues("miss")), 1e-9)
}

// --- Snapshotter ---

type harness struct {
	bus   *ResizeBus
	m     *Map
	im    *mapview.IncidentMap
	clock *clockwork.FakeClock
	snap  *Snapshotter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	bus := NewResizeBus(Size{Width: 1024, Height: 500})
	m := NewMap(bus)
	im := mapview.NewIncidentMap(mapview.Options{Resize: bus, Clock: clock})
	im.OnAttach(m)
	t.Cleanup(im.OnDetach)

	popups := NewPopupRenderer(10, observability.NewMetricsForTesting())
	return &harness{
		bus:   bus,
		m:     m,
		im:    im,
		clock: clock,
		snap:  NewSnapshotter(clock, domain.DefaultRegion, popups, slog.Default()),
	}
}

func (h *harness) snapshot() Scene {
	var sc Scene
	h.im.Inspect(func(st mapview.State) { sc = h.snap.Snapshot(h.m, st) })
	return sc
}

func TestSnapshot_FittedScene(t *testing.T) {
	h := newHarness(t)
	h.im.OnDataChange([]domain.IncidentRecord{
		record("A", 1, 37, "critical"),
		record("B", 0, 0, "high"),
		record("C", 2, 38, "low"),
	})

	sc := h.snapshot()

	assert.NotEqual(t, uuid.Nil, sc.ID)
	assert.True(t, sc.GeneratedAt.Equal(h.clock.Now()))
	assert.Equal(t, Size{Width: 1024, Height: 500}, sc.Size)
	assert.Equal(t, 1, sc.Dropped)

	wantView := View{
		Mode:   "fitted",
		Center: domain.LatLng{Lat: 1.5, Lng: 37.5},
		Zoom:   9,
		Bounds: &Bounds{South: 1, West: 37, North: 2, East: 38},
	}
	if diff := cmp.Diff(wantView, sc.View, cmpFloat); diff != "" {
		t.Errorf("view mismatch (-want +got):\n%s", diff)
	}

	require.NotNil(t, sc.Heat)
	assert.Equal(t, mapview.DefaultHeatOptions(), sc.Heat.Options)
	require.Len(t, sc.Heat.Points, 2)

	require.Len(t, sc.Markers, 2)
	assert.Equal(t, "A", sc.Markers[0].Key)
	assert.Equal(t, "#FF0000", sc.Markers[0].Color)
	assert.Equal(t, "/incidents?incident=A", sc.Markers[0].DetailPath)
	assert.NotEmpty(t, sc.Markers[0].PopupHTML)
	assert.Equal(t, "C", sc.Markers[1].Key)

	assert.Equal(t, 3, sc.Stats.Total)
	assert.Equal(t, 2, sc.Stats.Plotted)
	assert.Equal(t, "3 hours ago", sc.Stats.LastActivity)
}

func TestSnapshot_EmptySceneHasNoHeat(t *testing.T) {
	h := newHarness(t)
	h.im.OnDataChange(nil)

	sc := h.snapshot()

	assert.Nil(t, sc.Heat)
	assert.Empty(t, sc.Markers)
	assert.Equal(t, "fallback", sc.View.Mode)
	assert.Nil(t, sc.View.Bounds)
	assert.Equal(t, domain.DefaultCenter, sc.View.Center)
	assert.Equal(t, domain.DefaultZoom, sc.View.Zoom)

	b, err := json.Marshal(sc)
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"heat"`)
	assert.Contains(t, string(b), `"markers":[]`)
}

func TestSnapshot_ResizePropagatesToScene(t *testing.T) {
	h := newHarness(t)

	h.bus.Resize(Size{Width: 640, Height: 480})

	assert.Equal(t, Size{Width: 640, Height: 480}, h.snapshot().Size)
}

var cmpFloat = cmp.Comparer(func(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
})
