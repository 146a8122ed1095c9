package histogram

import (
	"sync"

	"golang.org/x/exp/slices"
)

// A Listener gets notified when a model has changed. ModelUpdated is called synchronously on the goroutine that
// changed the model, so implementations should only schedule a redraw, not perform one. Listeners are called after
// the model's lock has been released and may call any of the model's methods.
type Listener interface {
	ModelUpdated()
}

type ListenerFunc func()

func (fn ListenerFunc) ModelUpdated() { fn() }

// ListenerID identifies a registered listener so that it can be removed again.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	l  Listener
}

type notifier struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners []listenerEntry
}

// AddListener registers l. Listeners are notified in the order they were added.
func (n *notifier) AddListener(l Listener) ListenerID {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.listeners = append(n.listeners, listenerEntry{id: n.nextID, l: l})
	return n.nextID
}

// RemoveListener unregisters the listener identified by id. It reports whether the listener was registered.
func (n *notifier) RemoveListener(id ListenerID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	idx := slices.IndexFunc(n.listeners, func(e listenerEntry) bool { return e.id == id })
	if idx == -1 {
		return false
	}
	n.listeners = slices.Delete(n.listeners, idx, idx+1)
	return true
}

func (n *notifier) fire() {
	n.mu.Lock()
	ls := slices.Clone(n.listeners)
	n.mu.Unlock()

	for _, e := range ls {
		e.l.ModelUpdated()
	}
}
