package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/road-incident-map/internal/adapter/scene"
	"github.com/couchcryptid/road-incident-map/internal/domain"
	"github.com/couchcryptid/road-incident-map/internal/observability"
	"github.com/couchcryptid/road-incident-map/internal/pipeline"
)

// --- mocks ---

type fetchResult struct {
	records []domain.IncidentRecord
	err     error
}

type mockFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	queries []domain.IncidentQuery
}

func (m *mockFetcher) ListIncidents(_ context.Context, q domain.IncidentQuery) ([]domain.IncidentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.queries)
	m.queries = append(m.queries, q)
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	return m.results[i].records, m.results[i].err
}

func (m *mockFetcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

type mockRenderer struct {
	mu      sync.Mutex
	updates [][]domain.IncidentRecord
}

func (m *mockRenderer) Update(records []domain.IncidentRecord) scene.Scene {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, records)
	return scene.Scene{ID: uuid.New(), Markers: make([]scene.MarkerView, len(records))}
}

func (m *mockRenderer) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

type mockPublisher struct {
	mu     sync.Mutex
	err    error
	scenes []scene.Scene
}

func (m *mockPublisher) Publish(_ context.Context, sc scene.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenes = append(m.scenes, sc)
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func oneIncident() []domain.IncidentRecord {
	return []domain.IncidentRecord{{IncidentID: "INC-1", Latitude: domain.Num(-1.29), Longitude: domain.Num(36.82)}}
}

func newRefresher(f pipeline.Fetcher, r pipeline.Renderer, pub pipeline.Publisher, clock clockwork.Clock) *pipeline.Refresher {
	return pipeline.New(f, r, pub, pipeline.Options{
		Interval: 30 * time.Second,
		Clock:    clock,
		Query:    pipeline.DayQuery(time.Time{}, "all"),
	}, discardLogger(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestRefresh_HappyPath(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{{records: oneIncident()}}}
	r := &mockRenderer{}
	pub := &mockPublisher{}
	p := newRefresher(f, r, pub, clockwork.NewFakeClock())

	require.Error(t, p.CheckReadiness(context.Background()))
	require.NoError(t, p.Refresh(context.Background()))

	assert.Equal(t, 1, r.calls())
	require.Len(t, pub.scenes, 1)
	assert.Len(t, pub.scenes[0].Markers, 1)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestRefresh_FetchErrorKeepsScene(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{{err: errors.New("connection refused")}}}
	r := &mockRenderer{}
	p := newRefresher(f, r, nil, clockwork.NewFakeClock())

	err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, 0, r.calls(), "the map must not be cleared on a failed fetch")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestRefresh_PublishErrorIsNotFatal(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{{records: oneIncident()}}}
	r := &mockRenderer{}
	pub := &mockPublisher{err: errors.New("broker down")}
	p := newRefresher(f, r, pub, clockwork.NewFakeClock())

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, 1, r.calls())
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestRun_RefreshesOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := &mockFetcher{results: []fetchResult{{records: oneIncident()}}}
	r := &mockRenderer{}
	p := newRefresher(f, r, nil, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return r.calls() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool { return r.calls() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_BacksOffAfterFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := &mockFetcher{results: []fetchResult{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{records: oneIncident()},
	}}
	r := &mockRenderer{}
	p := newRefresher(f, r, nil, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return f.calls() == 1 }, time.Second, 5*time.Millisecond)

	// First retry after 200ms.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(199 * time.Millisecond)
	assert.Equal(t, 1, f.calls())
	clock.Advance(time.Millisecond)
	assert.Eventually(t, func() bool { return f.calls() == 2 }, time.Second, 5*time.Millisecond)

	// Second retry after 400ms.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(400 * time.Millisecond)
	assert.Eventually(t, func() bool { return f.calls() == 3 }, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return r.calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return p.CheckReadiness(ctx) == nil }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_ContextCancellation(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{{records: oneIncident()}}}
	r := &mockRenderer{}
	p := newRefresher(f, r, nil, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 0, f.calls())
}

func TestDayQuery(t *testing.T) {
	now := time.Date(2025, 3, 10, 22, 30, 0, 0, time.UTC) // 01:30 on the 11th in Nairobi

	today := pipeline.DayQuery(time.Time{}, "all")(now)
	assert.True(t, time.Date(2025, 3, 11, 0, 0, 0, 0, domain.DisplayZone).Equal(today.CreatedFrom))
	assert.Empty(t, today.Status)

	fixed := pipeline.DayQuery(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "pending")(now)
	assert.True(t, time.Date(2025, 3, 1, 0, 0, 0, 0, domain.DisplayZone).Equal(fixed.CreatedFrom))
	assert.True(t, time.Date(2025, 3, 1, 23, 59, 59, int(999*time.Millisecond), domain.DisplayZone).Equal(fixed.CreatedTo))
	assert.Equal(t, "pending", fixed.Status)
}
