package scene

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"html/template"

	"github.com/couchcryptid/road-incident-map/internal/mapview"
	"github.com/couchcryptid/road-incident-map/internal/observability"
)

var popupTemplate = template.Must(template.New("popup").Parse(`<div class="incident-popup">
<h3>{{.Title}}</h3>
<span class="severity-badge" style="background-color: {{.SeverityColor}}">{{.SeverityLabel}}</span>
<dl>
<dt>Status</dt><dd>{{.Status}}</dd>
<dt>Type</dt><dd>{{.TypeName}}</dd>
{{- with .Category}}
<dt>Category</dt><dd>{{.}}</dd>
{{- end}}
{{- with .RoadName}}
<dt>Road</dt><dd>{{.}}</dd>
{{- end}}
<dt>Coordinates</dt><dd>{{.Coordinates}}</dd>
{{- with .Weather}}
<dt>Weather</dt><dd>{{.}}</dd>
{{- end}}
{{- with .Verification}}
<dt>Verification</dt><dd>{{.}}</dd>
{{- end}}
{{- with .Reported}}
<dt>Reported</dt><dd>{{.}}</dd>
{{- end}}
{{- with .Updated}}
<dt>Updated</dt><dd>{{.}}</dd>
{{- end}}
{{- if .ReporterEmail}}
<dt>Reporter</dt><dd>{{.ReporterEmail}}</dd>
{{- else if .Anonymous}}
<dt>Reporter</dt><dd>Anonymous</dd>
{{- end}}
</dl>
{{- with .Confidence}}
<div class="confidence"><div class="confidence-bar" style="width: {{.WidthPct}}%"></div><span>AI confidence {{.Label}}</span></div>
{{- end}}
{{- with .Description}}
<p class="description">{{.}}</p>
{{- end}}
{{- with .DetailPath}}
<a class="view-details" href="{{.}}">View Details</a>
{{- end}}
</div>`))

// PopupRenderer renders marker popups to HTML. Output is memoised per marker
// and popup content, so an unchanged incident is rendered once across
// refreshes.
type PopupRenderer struct {
	cache   *lruCache
	metrics *observability.Metrics
}

// NewPopupRenderer creates a renderer caching up to maxEntries popups.
func NewPopupRenderer(maxEntries int, metrics *observability.Metrics) *PopupRenderer {
	return &PopupRenderer{cache: newLRUCache(maxEntries), metrics: metrics}
}

// Render returns the popup HTML for mk.
func (r *PopupRenderer) Render(mk *mapview.Marker) (string, error) {
	key, err := popupKey(mk)
	if err != nil {
		return "", err
	}
	if html, ok := r.cache.get(key); ok {
		r.metrics.PopupCache.WithLabelValues("hit").Inc()
		return html, nil
	}
	r.metrics.PopupCache.WithLabelValues("miss").Inc()

	var buf bytes.Buffer
	if err := popupTemplate.Execute(&buf, mk.Popup); err != nil {
		return "", fmt.Errorf("render popup %s: %w", mk.Key, err)
	}
	html := buf.String()
	r.cache.put(key, html)
	return html, nil
}

func popupKey(mk *mapview.Marker) (string, error) {
	b, err := json.Marshal(mk.Popup)
	if err != nil {
		return "", fmt.Errorf("hash popup %s: %w", mk.Key, err)
	}
	h := fnv.New64a()
	h.Write(b) //nolint:errcheck // hash writes never fail
	return fmt.Sprintf("%s|%016x", mk.Key, h.Sum64()), nil
}
