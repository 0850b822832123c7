package domain

// Region is an inclusive latitude/longitude bounding box in degrees.
type Region struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// DefaultRegion covers Kenya with some margin.
var DefaultRegion = Region{MinLat: -5, MaxLat: 6, MinLng: 33, MaxLng: 42}

// Contains reports whether (lat, lng) is a plottable point in the region.
// Exact zeros are rejected on either axis: 0 is what an unset coordinate
// decodes to upstream, and neither axis of a real Kenyan point rounds to it.
// This is the only coordinate-validity rule; the geofilter, the heat layer
// and the viewport all go through it.
func (r Region) Contains(lat, lng float64) bool {
	if lat == 0 || lng == 0 {
		return false
	}
	return lat >= r.MinLat && lat <= r.MaxLat && lng >= r.MinLng && lng <= r.MaxLng
}

// Locate returns the record's coordinates when they are valid numbers inside
// the region.
func (r Region) Locate(rec IncidentRecord) (lat, lng float64, ok bool) {
	if !rec.Latitude.Valid || !rec.Longitude.Valid {
		return 0, 0, false
	}
	lat, lng = rec.Latitude.Value, rec.Longitude.Value
	if !r.Contains(lat, lng) {
		return 0, 0, false
	}
	return lat, lng, true
}

// FilterValid returns the records whose coordinates pass Locate, in input
// order. Filtering its own output returns the same records.
func (r Region) FilterValid(records []IncidentRecord) []IncidentRecord {
	out := make([]IncidentRecord, 0, len(records))
	for _, rec := range records {
		if _, _, ok := r.Locate(rec); ok {
			out = append(out, rec)
		}
	}
	return out
}

// ValidatedPoint is one heat-layer sample.
type ValidatedPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"`
}

// PlottedIncident is a record that passed the geofilter, with its parsed
// position and normalised severity. Index is its position among the plotted
// incidents, which is what markers without an identifier are keyed by.
type PlottedIncident struct {
	Record   IncidentRecord
	Index    int
	Lat      float64
	Lng      float64
	Severity Severity
}

// Point returns the heat-layer sample for the incident.
func (p PlottedIncident) Point() ValidatedPoint {
	return ValidatedPoint{Lat: p.Lat, Lng: p.Lng, Intensity: p.Severity.Intensity()}
}

// Plot geofilters records and normalises the severity of each survivor.
func (r Region) Plot(records []IncidentRecord) []PlottedIncident {
	out := make([]PlottedIncident, 0, len(records))
	for _, rec := range records {
		lat, lng, ok := r.Locate(rec)
		if !ok {
			continue
		}
		out = append(out, PlottedIncident{
			Record:   rec,
			Index:    len(out),
			Lat:      lat,
			Lng:      lng,
			Severity: NormalizeSeverity(rec.Severity),
		})
	}
	return out
}

// HeatPoints returns one sample per plotted incident, in order.
func HeatPoints(plotted []PlottedIncident) []ValidatedPoint {
	points := make([]ValidatedPoint, len(plotted))
	for i, p := range plotted {
		points[i] = p.Point()
	}
	return points
}
