package domain

import "github.com/golang/geo/s2"

// Viewport defaults for the deployment region.
const (
	DefaultZoom  = 7
	CloseZoom    = 12
	FitPaddingPx = 50
	FitMaxZoom   = 12
)

// DefaultCenter is Nairobi.
var DefaultCenter = LatLng{Lat: -1.2921, Lng: 36.8219}

// LatLng is a WGS-84 position in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// S2 converts to an s2.LatLng.
func (p LatLng) S2() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lng)
}

// LatLngFromS2 converts back from an s2.LatLng.
func LatLngFromS2(ll s2.LatLng) LatLng {
	return LatLng{Lat: ll.Lat.Degrees(), Lng: ll.Lng.Degrees()}
}

// ViewportMode says how a Viewport is applied to a map.
type ViewportMode int

const (
	// ViewportFallback centres on DefaultCenter at DefaultZoom.
	ViewportFallback ViewportMode = iota
	// ViewportCentered centres on the single plottable incident at CloseZoom.
	ViewportCentered
	// ViewportFitted fits Bounds with padding, never zooming past MaxZoom.
	ViewportFitted
)

func (m ViewportMode) String() string {
	switch m {
	case ViewportCentered:
		return "centered"
	case ViewportFitted:
		return "fitted"
	default:
		return "fallback"
	}
}

// Viewport is the map view derived from an incident set. Center and Zoom are
// set for the fallback and centered modes; Bounds, PaddingPx and MaxZoom for
// the fitted mode.
type Viewport struct {
	Mode      ViewportMode
	Center    LatLng
	Zoom      int
	Bounds    s2.Rect
	PaddingPx int
	MaxZoom   int
}

// ComputeViewport derives the viewport from records. It applies the region's
// geofilter itself, so raw and pre-filtered input give the same result.
func (r Region) ComputeViewport(records []IncidentRecord) Viewport {
	rect := s2.EmptyRect()
	var first LatLng
	n := 0
	for _, rec := range records {
		lat, lng, ok := r.Locate(rec)
		if !ok {
			continue
		}
		if n == 0 {
			first = LatLng{Lat: lat, Lng: lng}
		}
		rect = rect.AddPoint(s2.LatLngFromDegrees(lat, lng))
		n++
	}

	switch n {
	case 0:
		return Viewport{Mode: ViewportFallback, Center: DefaultCenter, Zoom: DefaultZoom}
	case 1:
		return Viewport{Mode: ViewportCentered, Center: first, Zoom: CloseZoom}
	default:
		return Viewport{
			Mode:      ViewportFitted,
			Center:    LatLngFromS2(rect.Center()),
			Bounds:    rect,
			PaddingPx: FitPaddingPx,
			MaxZoom:   FitMaxZoom,
		}
	}
}
