// Command snapshot renders a saved incident list into a map scene without
// running the service. It reads either a bare JSON array of incidents or a
// paginated API response and writes the scene as JSON.
//
// Usage:
//
//	go run ./cmd/snapshot \
//	  -in internal/dashboard/testdata/incidents.json \
//	  -out scene.json \
//	  -now 2025-03-10T12:00:00Z
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/road-incident-map/internal/adapter/incidentapi"
	"github.com/couchcryptid/road-incident-map/internal/adapter/scene"
	"github.com/couchcryptid/road-incident-map/internal/dashboard"
	"github.com/couchcryptid/road-incident-map/internal/domain"
	"github.com/couchcryptid/road-incident-map/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "incident JSON file")
	out := flag.String("out", "", "output path for the scene (default stdout)")
	nowFlag := flag.String("now", "", "RFC3339 time used for relative labels (default current time)")
	width := flag.Int("width", 1024, "map container width in pixels")
	height := flag.Int("height", 500, "map container height in pixels")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -in")
	}
	if *width <= 0 || *height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}

	now := time.Now()
	if *nowFlag != "" {
		t, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
		now = t
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}
	page, err := incidentapi.DecodePage(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", *in, err)
	}

	// Fixed clock for reproducible labels and timestamps.
	clock := clockwork.NewFakeClockAt(now)
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	d := dashboard.New(dashboard.Options{
		Region:  domain.DefaultRegion,
		Size:    scene.Size{Width: *width, Height: *height},
		Clock:   clock,
		Metrics: observability.NewMetricsForTesting(),
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
	defer d.Close()

	sc := d.Update(page.Results)
	log.Printf("%d incidents: %d plotted, %d dropped", len(page.Results), len(sc.Markers), sc.Dropped)

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create %s: %w", *out, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sc); err != nil {
		return fmt.Errorf("write scene: %w", err)
	}
	return nil
}
