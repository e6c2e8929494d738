package progress

import (
	"sync"
	"time"
)

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// Hub fans progress events out to subscribers. Publish blocks on a
// subscriber with a full buffer until it drains, unsubscribes, or the hub
// closes, so every subscriber sees every event in publish order.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed chan struct{}
	once   sync.Once
	now    func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		closed: make(chan struct{}),
		now:    time.Now,
	}
}

// Subscribe registers a listener with the given channel buffer. The returned
// function unsubscribes and closes the channel; it is safe to call more than
// once.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}

	s := &subscriber{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	select {
	case <-h.closed:
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	default:
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	return s.ch, func() { h.unsubscribe(s) }
}

func (h *Hub) unsubscribe(s *subscriber) {
	s.once.Do(func() {
		// Release any publisher blocked on this subscriber before taking the
		// write lock.
		close(s.done)

		h.mu.Lock()
		defer h.mu.Unlock()

		if _, ok := h.subs[s]; ok {
			delete(h.subs, s)
			close(s.ch)
		}
	})
}

// Publish delivers e to every current subscriber.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		select {
		case s.ch <- e:
		case <-s.done:
		case <-h.closed:
			return
		}
	}
}

// Close unblocks publishers and closes every subscriber channel.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.closed)

		h.mu.Lock()
		defer h.mu.Unlock()

		for s := range h.subs {
			close(s.ch)
		}
		h.subs = make(map[*subscriber]struct{})
	})
}

// Track returns an observer that publishes progress for fileID through h.
func (h *Hub) Track(fileID string) *Tracker {
	return &Tracker{fileID: fileID, hub: h}
}

// Tracker turns Progress snapshots for one file into Events.
type Tracker struct {
	fileID string
	hub    *Hub

	mu   sync.Mutex
	last Event
	seen bool
}

func (t *Tracker) Observe(p Progress) {
	e := Event{
		FileID:          t.fileID,
		Percent:         p.Percent(),
		Throughput:      p.Throughput(),
		CompletedChunks: p.CompletedChunks,
		TotalChunks:     p.TotalChunks,
		Time:            t.hub.now(),
	}

	t.mu.Lock()
	t.last = e
	t.seen = true
	t.mu.Unlock()

	t.hub.Publish(e)
}

// Last returns the most recent event and whether one has been observed.
func (t *Tracker) Last() (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last, t.seen
}
