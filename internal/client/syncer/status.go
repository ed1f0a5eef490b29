package syncer

import (
	"sync"
	"time"
)

// Phase is the coarse sync status shown to the UI.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseSyncing Phase = "syncing"
	PhaseFailed  Phase = "failed"
)

// Status is the sync-status signal consumed by the UI.
type Status struct {
	Phase      Phase
	ServerID   string
	LastPassAt time.Time
	LastError  string
	Exhausted  int
}

// statusHub holds the current status and fans changes out to subscribers.
// Slow subscribers only ever see the latest status.
type statusHub struct {
	mu      sync.Mutex
	current Status
	subs    map[int]chan Status
	nextID  int
}

func newStatusHub() *statusHub {
	return &statusHub{current: Status{Phase: PhaseIdle}, subs: make(map[int]chan Status)}
}

func (h *statusHub) get() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *statusHub) set(s Status) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = s
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (h *statusHub) subscribe() (<-chan Status, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Status, 1)
	ch <- h.current
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}
