package scene

import "sync"

// Size is the map container size in CSS pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SizeProvider reports the current container size.
type SizeProvider interface {
	Size() Size
}

// ResizeBus records the size the browser last reported and fans resize
// events out to subscribers. It implements mapview.ResizeSource.
type ResizeBus struct {
	mu   sync.Mutex
	size Size
	subs map[int]func()
	next int
}

// NewResizeBus creates a bus starting at initial.
func NewResizeBus(initial Size) *ResizeBus {
	return &ResizeBus{size: initial, subs: map[int]func(){}}
}

// OnResize subscribes fn to resize events.
func (b *ResizeBus) OnResize(fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

// Resize stores the new size and notifies subscribers. Subscribers run on the
// caller's goroutine after the bus lock is released, so they may read Size.
func (b *ResizeBus) Resize(s Size) {
	b.mu.Lock()
	b.size = s
	subs := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Size returns the last reported size.
func (b *ResizeBus) Size() Size {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Subscribers returns the number of live subscriptions.
func (b *ResizeBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
