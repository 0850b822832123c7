package mapview

import "github.com/couchcryptid/road-incident-map/internal/domain"

// BoundsController moves the viewport to fit the incident set. It only acts
// on attach and on data changes; user pan and zoom are left alone.
type BoundsController struct {
	region   domain.Region
	m        Map
	records  []domain.IncidentRecord
	viewport domain.Viewport
}

// NewBoundsController creates a controller that validates coordinates
// against region.
func NewBoundsController(region domain.Region) *BoundsController {
	return &BoundsController{
		region:   region,
		viewport: region.ComputeViewport(nil),
	}
}

// OnAttach binds the controller to m and applies the current viewport.
func (c *BoundsController) OnAttach(m Map) {
	c.m = m
	c.apply()
}

// OnDataChange recomputes the viewport from records, which may be raw or
// already filtered, and applies it.
func (c *BoundsController) OnDataChange(records []domain.IncidentRecord) domain.Viewport {
	c.records = records
	c.viewport = c.region.ComputeViewport(records)
	c.apply()
	return c.viewport
}

// OnDetach releases the map.
func (c *BoundsController) OnDetach() {
	c.m = nil
}

// Viewport returns the last computed viewport.
func (c *BoundsController) Viewport() domain.Viewport {
	return c.viewport
}

func (c *BoundsController) apply() {
	if c.m == nil {
		return
	}
	v := c.viewport
	if v.Mode == domain.ViewportFitted {
		c.m.FitBounds(v.Bounds, FitOptions{PaddingPx: v.PaddingPx, MaxZoom: v.MaxZoom})
		return
	}
	c.m.SetView(v.Center, v.Zoom)
}
