package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/road-incident-map/internal/adapter/scene"
	"github.com/couchcryptid/road-incident-map/internal/domain"
	"github.com/couchcryptid/road-incident-map/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Fetcher lists the incidents matching a query.
type Fetcher interface {
	ListIncidents(ctx context.Context, q domain.IncidentQuery) ([]domain.IncidentRecord, error)
}

// Renderer replaces the map's incident set and returns the resulting scene.
type Renderer interface {
	Update(records []domain.IncidentRecord) scene.Scene
}

// Publisher ships a rendered scene downstream.
type Publisher interface {
	Publish(ctx context.Context, sc scene.Scene) error
}

// QueryFunc builds the incident query for a refresh starting at now.
type QueryFunc func(now time.Time) domain.IncidentQuery

// DayQuery selects one calendar day in the display zone. A zero day means
// the current day at each refresh.
func DayQuery(day time.Time, status string) QueryFunc {
	return func(now time.Time) domain.IncidentQuery {
		d := now
		if !day.IsZero() {
			d = time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, domain.DisplayZone)
		}
		return domain.QueryForDay(d, domain.DisplayZone, status)
	}
}

// Options configures a Refresher.
type Options struct {
	Interval time.Duration
	Query    QueryFunc
	Clock    clockwork.Clock
}

// Refresher periodically fetches incidents, renders them, and publishes the
// resulting scene.
type Refresher struct {
	fetcher   Fetcher
	renderer  Renderer
	publisher Publisher
	interval  time.Duration
	query     QueryFunc
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Refresher. publisher may be nil.
func New(f Fetcher, r Renderer, pub Publisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Query == nil {
		opts.Query = DayQuery(time.Time{}, "")
	}
	return &Refresher{
		fetcher:   f,
		renderer:  r,
		publisher: pub,
		interval:  opts.Interval,
		query:     opts.Query,
		clock:     opts.Clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the map has been rendered from at least one
// successful fetch.
func (p *Refresher) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("incident map has not been refreshed yet")
	}
	return nil
}

// Run refreshes immediately and then every interval until the context is
// cancelled. A failed refresh leaves the current scene in place and is retried
// with exponential backoff.
func (p *Refresher) Run(ctx context.Context) error {
	p.logger.Info("refresher started", "interval", p.interval)
	p.metrics.RefreshRunning.Set(1)
	defer p.metrics.RefreshRunning.Set(0)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			p.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		}

		wait := p.interval
		if err := p.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("refresh failed, keeping current scene", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = retry.NextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !sleepWithContext(ctx, p.clock, wait) {
			p.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// Refresh runs one fetch-render-publish cycle.
func (p *Refresher) Refresh(ctx context.Context) error {
	start := p.clock.Now()
	q := p.query(start)

	records, err := p.fetcher.ListIncidents(ctx, q)
	if err != nil {
		p.metrics.Refreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch incidents: %w", err)
	}
	p.metrics.IncidentsFetched.Add(float64(len(records)))

	sc := p.renderer.Update(records)
	p.ready.Store(true)
	p.metrics.Refreshes.WithLabelValues("success").Inc()

	if p.publisher != nil {
		// The map is already current; a publish failure only loses this snapshot.
		if err := p.publisher.Publish(ctx, sc); err != nil {
			p.logger.Error("publish scene failed", "error", err, "scene_id", sc.ID)
		} else {
			p.metrics.SnapshotsPublished.Inc()
		}
	}

	p.metrics.RefreshDuration.Observe(p.clock.Since(start).Seconds())
	return nil
}

// sleepWithContext is retry.SleepWithContext on an injectable clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
