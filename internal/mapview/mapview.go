// Package mapview keeps an interactive map in step with the current incident
// set: a heat-density overlay, one marker per plottable incident, a viewport
// fitted to the data, and correct rendering size across container resizes.
//
// Each controller follows the same lifecycle: OnAttach when the map exists,
// OnDataChange whenever the incident set is replaced, OnDetach before the map
// is discarded. Controllers do not lock; IncidentMap composes them and
// serialises access.
package mapview

import (
	"github.com/golang/geo/s2"

	"github.com/couchcryptid/road-incident-map/internal/domain"
)

// LayerKind identifies a layer type on the map.
type LayerKind string

const (
	LayerHeat   LayerKind = "heat"
	LayerMarker LayerKind = "marker"
)

// Layer is anything that can be added to a Map.
type Layer interface {
	Kind() LayerKind
}

// FitOptions controls Map.FitBounds.
type FitOptions struct {
	PaddingPx int
	MaxZoom   int
}

// Map is the mutable map handle the controllers drive. Implementations must
// treat AddLayer of a live layer and RemoveLayer of an absent one as no-ops.
type Map interface {
	SetView(center domain.LatLng, zoom int)
	FitBounds(bounds s2.Rect, opts FitOptions)
	AddLayer(l Layer)
	RemoveLayer(l Layer)
	InvalidateSize()
}

// ResizeSource delivers container resize events. The returned function
// removes the subscription.
type ResizeSource interface {
	OnResize(fn func()) (unsubscribe func())
}

// Navigator moves the user to another view of the application.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }
