package mapview

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultResizeDelay gives the container's layout time to settle before the
// first size computation.
const DefaultResizeDelay = 100 * time.Millisecond

// ResizeSynchronizer keeps the map's rendering size in step with its
// container. It is safe for concurrent use: the debounce timer and resize
// events fire on their own goroutines.
type ResizeSynchronizer struct {
	clock  clockwork.Clock
	delay  time.Duration
	source ResizeSource

	mu          sync.Mutex
	m           Map
	timer       clockwork.Timer
	unsubscribe func()
}

// NewResizeSynchronizer creates a synchronizer. A nil source means only the
// initial sync runs.
func NewResizeSynchronizer(clock clockwork.Clock, delay time.Duration, source ResizeSource) *ResizeSynchronizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ResizeSynchronizer{clock: clock, delay: delay, source: source}
}

// OnAttach schedules the initial size sync after the delay and subscribes to
// resize events.
func (s *ResizeSynchronizer) OnAttach(m Map) {
	s.OnDetach()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = m
	s.timer = s.clock.AfterFunc(s.delay, s.invalidate)
	if s.source != nil {
		s.unsubscribe = s.source.OnResize(s.invalidate)
	}
}

// OnDetach cancels a pending initial sync and unsubscribes. The unsubscribe
// function runs exactly once however often OnDetach is called.
func (s *ResizeSynchronizer) OnDetach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.m = nil
}

func (s *ResizeSynchronizer) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		return
	}
	s.m.InvalidateSize()
}
