package auth

import (
	"sync"

	"github.com/sarathmodify/admin-dashboard/pkg/backend"
)

// hub fans auth events out to registered listeners
type hub struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]backend.AuthListener
}

func newHub() *hub {
	return &hub{listeners: make(map[int]backend.AuthListener)}
}

// subscribe registers fn. The returned function is idempotent.
func (h *hub) subscribe(fn backend.AuthListener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// emit delivers the event synchronously, outside the lock
func (h *hub) emit(event backend.AuthEvent, session *backend.Session) {
	h.mu.RLock()
	fns := make([]backend.AuthListener, 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

func (h *hub) size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
