package object

import "sync"

// Listener receives an emitted event and its payload.
type Listener func(so *SharedObject, data any)

// Subscription identifies one registered Listener for Off.
type Subscription struct {
	event string
	id    uint64
}

type listenerEntry struct {
	id      uint64
	fn      Listener
	removed bool
}

type emitter struct {
	mu        sync.Mutex
	listeners map[string][]*listenerEntry
	nextID    uint64
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[string][]*listenerEntry)}
}

// On registers fn for event, returning a Subscription usable with Off.
func (e *emitter) On(event string, fn Listener) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], &listenerEntry{id: id, fn: fn})
	return Subscription{event: event, id: id}
}

// Once registers fn for event; fn self-removes before it is invoked the
// first time.
func (e *emitter) Once(event string, fn Listener) Subscription {
	var sub Subscription
	sub = e.On(event, func(so *SharedObject, data any) {
		e.Off(sub)
		fn(so, data)
	})
	return sub
}

// Off removes the listener identified by sub, if still registered.
func (e *emitter) Off(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := e.listeners[sub.event]
	for _, entry := range entries {
		if entry.id == sub.id {
			entry.removed = true
		}
	}
}

// fire invokes every live listener for event, in registration order.
func (e *emitter) fire(so *SharedObject, event string, data any) {
	e.mu.Lock()
	entries := append([]*listenerEntry(nil), e.listeners[event]...)
	e.mu.Unlock()
	for _, entry := range entries {
		if !entry.removed {
			entry.fn(so, data)
		}
	}
}

// clear drops every registered listener, used once during finishDestroy.
func (e *emitter) clear() {
	e.mu.Lock()
	e.listeners = make(map[string][]*listenerEntry)
	e.mu.Unlock()
}
