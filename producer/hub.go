// Package producer provides a fan-out hub that a scanning subsystem can use
// as the registration point for one record kind.
package producer

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	m "github.com/Meander-Cloud/go-uplink/message"
)

// Hub implements registry.Producer. Publish may be called from any goroutine.
type Hub struct {
	kind m.Kind
	log  *zap.Logger

	mutex     sync.Mutex
	listeners []m.Listener // copy on write
}

func NewHub(kind m.Kind, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		kind: kind,
		log:  logger.Named(fmt.Sprintf("Hub-%s", kind)),
	}
}

func (h *Hub) Kind() m.Kind {
	return h.kind
}

func (h *Hub) Register(l m.Listener) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, existing := range h.listeners {
		if existing == l {
			return
		}
	}

	listeners := make([]m.Listener, 0, len(h.listeners)+1)
	listeners = append(listeners, h.listeners...)
	h.listeners = append(listeners, l)
}

func (h *Hub) Unregister(l m.Listener) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for i, existing := range h.listeners {
		if existing != l {
			continue
		}

		listeners := make([]m.Listener, 0, len(h.listeners)-1)
		listeners = append(listeners, h.listeners[:i]...)
		h.listeners = append(listeners, h.listeners[i+1:]...)
		return
	}
}

func (h *Hub) Listeners() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return len(h.listeners)
}

// Publish delivers rec to every registered listener and returns how many
// accepted it. A listener that panics is skipped.
func (h *Hub) Publish(rec m.Record) (int, error) {
	if rec.Kind() != h.kind {
		return 0, fmt.Errorf("hub %s cannot publish %s", h.kind, rec.Kind())
	}

	h.mutex.Lock()
	listeners := h.listeners
	h.mutex.Unlock()

	n := 0
	for _, l := range listeners {
		if h.deliver(l, rec) {
			n++
		}
	}
	return n, nil
}

func (h *Hub) deliver(l m.Listener, rec m.Record) (ok bool) {
	defer func() {
		r := recover()
		if r != nil {
			h.log.Error("listener recovered from panic", zap.Any("panic", r))
			ok = false
		}
	}()

	err := m.Deliver(l, rec)
	return err == nil
}
