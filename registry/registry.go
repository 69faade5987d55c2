// Package registry couples the uplink to the scanning subsystem: it keeps the
// per-kind producer subscriptions and fans connection state changes out to
// observers such as the UI or a status notification.
package registry

import (
	"sync"

	"go.uber.org/zap"

	m "github.com/Meander-Cloud/go-uplink/message"
)

// Producer is the registration half of one record kind's source.
type Producer interface {
	Register(m.Listener)
	Unregister(m.Listener)
}

type StateListener interface {
	OnConnectionStateChange(m.ConnectionState)
}

type subscription struct {
	kind     m.Kind
	listener m.Listener
}

// Registry is safe for concurrent use. Listeners are compared by identity
// and must therefore be comparable, pointers in practice.
type Registry struct {
	log *zap.Logger

	mutex         sync.Mutex
	producers     map[m.Kind]Producer
	subscriptions map[subscription]Producer

	stateMutex     sync.Mutex
	stateListeners []StateListener // copy on write
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		log: logger.Named("Registry"),

		producers:     make(map[m.Kind]Producer),
		subscriptions: make(map[subscription]Producer),
	}
}

// SetProducer installs the producer for kind, a nil producer removes it.
// Existing subscriptions stay with the producer they were made on.
func (r *Registry) SetProducer(kind m.Kind, p Producer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if p == nil {
		delete(r.producers, kind)
		return
	}
	r.producers[kind] = p
}

// Subscribe registers l with the producer of kind. Returns false when l is
// already subscribed or no producer is installed.
func (r *Registry) Subscribe(kind m.Kind, l m.Listener) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := subscription{kind: kind, listener: l}
	if _, found := r.subscriptions[key]; found {
		return false
	}

	p, found := r.producers[kind]
	if !found {
		r.log.Warn("no producer installed", zap.Stringer("kind", kind))
		return false
	}

	p.Register(l)
	r.subscriptions[key] = p
	r.log.Debug("subscribed", zap.Stringer("kind", kind))
	return true
}

// Unsubscribe reverses Subscribe, returns false when l was not subscribed.
func (r *Registry) Unsubscribe(kind m.Kind, l m.Listener) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.unsubscribe(subscription{kind: kind, listener: l})
}

// UnsubscribeAll removes every subscription of l and returns how many there
// were.
func (r *Registry) UnsubscribeAll(l m.Listener) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	n := 0
	for key := range r.subscriptions {
		if key.listener == l && r.unsubscribe(key) {
			n++
		}
	}
	return n
}

func (r *Registry) Subscribed(kind m.Kind, l m.Listener) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, found := r.subscriptions[subscription{kind: kind, listener: l}]
	return found
}

// caller must hold mutex
func (r *Registry) unsubscribe(key subscription) bool {
	p, found := r.subscriptions[key]
	if !found {
		return false
	}
	delete(r.subscriptions, key)

	p.Unregister(key.listener)
	r.log.Debug("unsubscribed", zap.Stringer("kind", key.kind))
	return true
}

// AddStateListener appends l, returns false if it is already registered.
func (r *Registry) AddStateListener(l StateListener) bool {
	r.stateMutex.Lock()
	defer r.stateMutex.Unlock()

	for _, existing := range r.stateListeners {
		if existing == l {
			return false
		}
	}

	listeners := make([]StateListener, 0, len(r.stateListeners)+1)
	listeners = append(listeners, r.stateListeners...)
	r.stateListeners = append(listeners, l)
	return true
}

func (r *Registry) RemoveStateListener(l StateListener) bool {
	r.stateMutex.Lock()
	defer r.stateMutex.Unlock()

	for i, existing := range r.stateListeners {
		if existing != l {
			continue
		}

		listeners := make([]StateListener, 0, len(r.stateListeners)-1)
		listeners = append(listeners, r.stateListeners[:i]...)
		r.stateListeners = append(listeners, r.stateListeners[i+1:]...)
		return true
	}
	return false
}

// Notify calls every state listener in registration order. Listeners added
// or removed concurrently take effect from the next Notify.
func (r *Registry) Notify(state m.ConnectionState) {
	r.stateMutex.Lock()
	listeners := r.stateListeners
	r.stateMutex.Unlock()

	for _, l := range listeners {
		r.notifyOne(l, state)
	}
}

func (r *Registry) notifyOne(l StateListener, state m.ConnectionState) {
	defer func() {
		rec := recover()
		if rec != nil {
			r.log.Error(
				"state listener recovered from panic",
				zap.Stringer("state", state),
				zap.Any("panic", rec),
			)
		}
	}()

	l.OnConnectionStateChange(state)
}
