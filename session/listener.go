package session

import (
	"sync"

	"github.com/user/gattwire/gatt"
)

// Event is delivered to a Listener for every notification or indication the
// peer sends, and once more when the session's lifecycle state changes.
type Event struct {
	Handle         uint16 // 0 for a lifecycle event
	Value          []byte
	State          State                         // valid on a lifecycle event
	Indication     bool                          // true if this is an indication rather than a notification
	CfmSent        bool                          // true once the indication's auto-confirmation has gone out
	Characteristic gatt.DiscoveredCharacteristic // resolved from discovery; zero value if unresolved
}

// Listener receives asynchronous session events. Implementations must not
// block: the fan-out calls every listener synchronously from the dispatch
// loop, so a slow listener delays delivery to every other listener and, in
// turn, the dispatch loop itself.
type Listener interface {
	HandleEvent(Event)
}

// CharacteristicMatcher is an optional extension a Listener can implement to
// restrict delivery to notification/indication events whose resolved
// characteristic satisfies Matches. Lifecycle events (Handle == 0) are
// always delivered regardless of Matches. A Listener that does not
// implement this interface receives every event.
type CharacteristicMatcher interface {
	Matches(c gatt.DiscoveredCharacteristic) bool
}

// listenerRegistry fans out events to a set of listeners. It favors cheap,
// safe concurrent reads over cheap writes: AddListener/RemoveListener copy
// the whole slice, so Notify can range over a stable snapshot without
// holding a lock while calling into listener code it does not control.
type listenerRegistry struct {
	mu        sync.Mutex
	listeners []Listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{}
}

// Add registers a listener; Remove unregisters it by identity. Add does not
// check for duplicates: a listener added twice receives each event twice.
func (r *listenerRegistry) Add(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]Listener, len(r.listeners)+1)
	copy(next, r.listeners)
	next[len(r.listeners)] = l
	r.listeners = next
}

// Remove drops the first registered listener equal to l.
func (r *listenerRegistry) Remove(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, existing := range r.listeners {
		if existing == l {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	next := make([]Listener, 0, len(r.listeners)-1)
	next = append(next, r.listeners[:idx]...)
	next = append(next, r.listeners[idx+1:]...)
	r.listeners = next
}

// Notify delivers ev to a snapshot of the currently registered listeners,
// skipping any CharacteristicMatcher whose Matches rejects ev.Characteristic.
func (r *listenerRegistry) Notify(ev Event) {
	r.mu.Lock()
	snapshot := r.listeners
	r.mu.Unlock()
	for _, l := range snapshot {
		if ev.Handle != 0 {
			if m, ok := l.(CharacteristicMatcher); ok && !m.Matches(ev.Characteristic) {
				continue
			}
		}
		l.HandleEvent(ev)
	}
}
