// Package domain models road-safety incident reports as the incident REST API
// serves them, and the pure rules that turn them into map geometry.
//
// # Data Source
//
// Incidents come from the platform's incident API (a Django REST Framework
// service). List endpoints are paginated: each page is
//
//	{"count": 42, "next": "https://…/?page=2", "previous": null, "results": [...]}
//
// and a few endpoints return the bare results array instead. Records are read-only
// here; this package never mutates upstream state.
//
// # Field Conventions
//
// Coordinates:
//
//	latitude/longitude are DecimalFields upstream, so they arrive as JSON
//	strings ("-1.292100") from the list serializer and as numbers from some
//	fixtures. Both decode into [Number]. A value that does not parse keeps its
//	raw text and is marked invalid instead of failing the whole page.
//
// Severity:
//
//	The nested severity object carries a short code ("P1".."P4") in "level" and a
//	named level ("critical".."low") in "name". Older payloads send a bare string.
//	Either vocabulary may appear in either field. [NormalizeSeverity] folds them
//	into one [Severity] before anything else looks at them:
//
//	  P1 / critical → red    #FF0000, intensity 1.0
//	  P2 / high     → orange #FF6600, intensity 0.7
//	  P3 / medium   → yellow #FFCC00, intensity 0.5
//	  P4 / low      → green  #00CC00, intensity 0.3
//	  anything else → gray   #808080, intensity 0.5
//
// AI confidence:
//
//	ai_confidence_score is a 0–100 DecimalField, nullable. null means "not scored".
//
// Timestamps:
//
//	created_at/updated_at are kept as the raw ISO 8601 strings; they are only
//	ever parsed for display, and a parse failure shows the raw string.
//
// # Deployment Region
//
// The platform is deployed in Kenya. [DefaultRegion] is a generous box around
// the country (lat -5..6, lng 33..42). Anything outside it, or sitting on exactly
// 0 latitude or longitude (the upstream default for an unset point), is not
// plottable and is dropped without error.
package domain
