package mapview

import "github.com/couchcryptid/road-incident-map/internal/domain"

// GradientStop is one colour stop of the heat gradient.
type GradientStop struct {
	Stop  float64 `json:"stop"`
	Color string  `json:"color"`
}

// HeatOptions configures the density renderer.
type HeatOptions struct {
	Radius   int            `json:"radius"`
	Blur     int            `json:"blur"`
	MaxZoom  int            `json:"max_zoom"`
	Max      float64        `json:"max"`
	Gradient []GradientStop `json:"gradient"`
}

// DefaultHeatOptions matches the dashboard's long-standing look.
func DefaultHeatOptions() HeatOptions {
	return HeatOptions{
		Radius:  25,
		Blur:    15,
		MaxZoom: 17,
		Max:     1.0,
		Gradient: []GradientStop{
			{Stop: 0.0, Color: "blue"},
			{Stop: 0.3, Color: "cyan"},
			{Stop: 0.5, Color: "lime"},
			{Stop: 0.7, Color: "yellow"},
			{Stop: 1.0, Color: "red"},
		},
	}
}

// HeatLayer is an immutable density overlay built from one point set.
type HeatLayer struct {
	Points  []domain.ValidatedPoint
	Options HeatOptions
}

func (*HeatLayer) Kind() LayerKind { return LayerHeat }

// HeatLayerController owns at most one live HeatLayer on a map. A new point
// set always replaces the layer instead of updating it in place, since the
// density renderer caches per-layer state.
type HeatLayerController struct {
	opts    HeatOptions
	m       Map
	layer   *HeatLayer
	pending []domain.ValidatedPoint
}

// NewHeatLayerController creates a controller in the Absent state.
func NewHeatLayerController(opts HeatOptions) *HeatLayerController {
	return &HeatLayerController{opts: opts}
}

// OnAttach binds the controller to m and renders any points received before.
func (c *HeatLayerController) OnAttach(m Map) {
	if c.m != nil && c.m != m {
		c.OnDetach()
	}
	c.m = m
	c.sync()
}

// OnDataChange replaces the overlay with one built from points, or removes it
// when points is empty. Returns true when a live layer was replaced by a new one.
func (c *HeatLayerController) OnDataChange(points []domain.ValidatedPoint) bool {
	c.pending = append([]domain.ValidatedPoint(nil), points...)
	return c.sync()
}

// OnDetach removes the live layer, if any, and releases the map. Calling it
// again is a no-op.
func (c *HeatLayerController) OnDetach() {
	c.detach()
	c.m = nil
}

// Layer returns the live overlay, or nil when Absent.
func (c *HeatLayerController) Layer() *HeatLayer {
	return c.layer
}

// Attached reports whether an overlay is live.
func (c *HeatLayerController) Attached() bool {
	return c.layer != nil
}

func (c *HeatLayerController) sync() bool {
	if c.m == nil {
		return false
	}
	if len(c.pending) == 0 {
		c.detach()
		return false
	}

	replaced := c.layer != nil
	c.detach()
	c.layer = &HeatLayer{Points: c.pending, Options: c.opts}
	c.m.AddLayer(c.layer)
	return replaced
}

func (c *HeatLayerController) detach() {
	if c.layer == nil {
		return
	}
	if c.m != nil {
		c.m.RemoveLayer(c.layer)
	}
	c.layer = nil
}
