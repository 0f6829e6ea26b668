package serialmux

import (
	"sync"

	"github.com/google/uuid"
)

// lineHub hands each received line to every subscriber that is ready for
// it. Once closed, every channel it issued is closed and new subscribers get
// an already-closed channel.
type lineHub struct {
	mu     sync.Mutex
	subs   map[string]chan string
	closed bool
}

func newLineHub() *lineHub {
	return &lineHub{subs: make(map[string]chan string)}
}

func (h *lineHub) subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	return id, ch
}

func (h *lineHub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// deliver reports false once the hub is closed.
func (h *lineHub) deliver(line string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	for _, ch := range h.subs {
		select {
		case ch <- line:
		default:
		}
	}
	return true
}

// close reports whether this call closed the hub.
func (h *lineHub) close() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	return true
}

func (h *lineHub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
