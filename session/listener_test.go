package session

import (
	"sync"
	"testing"

	"github.com/user/gattwire/att"
	"github.com/user/gattwire/gatt"
)

type recordingListener struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingListener) HandleEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingListener) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestListenerRegistryFanOut(t *testing.T) {
	reg := newListenerRegistry()
	a := &recordingListener{}
	b := &recordingListener{}
	reg.Add(a)
	reg.Add(b)

	reg.Notify(Event{Handle: 5, Value: []byte{1}})

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected both listeners notified, got a=%d b=%d", a.count(), b.count())
	}
}

func TestListenerRegistryRemove(t *testing.T) {
	reg := newListenerRegistry()
	a := &recordingListener{}
	b := &recordingListener{}
	reg.Add(a)
	reg.Add(b)
	reg.Remove(a)

	reg.Notify(Event{Handle: 1})

	if a.count() != 0 {
		t.Errorf("removed listener was still notified")
	}
	if b.count() != 1 {
		t.Errorf("remaining listener was not notified")
	}
}

type matchingListener struct {
	recordingListener
	want att.UUID
}

func (m *matchingListener) Matches(c gatt.DiscoveredCharacteristic) bool {
	return c.UUID.Equal(m.want)
}

func TestListenerRegistryFiltersByCharacteristicMatch(t *testing.T) {
	reg := newListenerRegistry()
	wanted := &matchingListener{want: att.UUID16(0x2A37)}
	other := &matchingListener{want: att.UUID16(0x2A19)}
	catchAll := &recordingListener{}
	reg.Add(wanted)
	reg.Add(other)
	reg.Add(catchAll)

	reg.Notify(Event{
		Handle:         0x0010,
		Value:          []byte{1},
		Characteristic: gatt.DiscoveredCharacteristic{UUID: att.UUID16(0x2A37), ValueHandle: 0x0010},
	})

	if wanted.count() != 1 {
		t.Errorf("matching listener count = %d, want 1", wanted.count())
	}
	if other.count() != 0 {
		t.Errorf("non-matching listener count = %d, want 0", other.count())
	}
	if catchAll.count() != 1 {
		t.Errorf("plain listener count = %d, want 1 (no Matches method, receives everything)", catchAll.count())
	}
}

func TestListenerRegistryDeliversLifecycleEventsRegardlessOfMatch(t *testing.T) {
	reg := newListenerRegistry()
	l := &matchingListener{want: att.UUID16(0x2A37)}
	reg.Add(l)

	reg.Notify(Event{State: StateDisconnecting})

	if l.count() != 1 {
		t.Errorf("lifecycle event count = %d, want 1 even though Matches would reject it", l.count())
	}
}

func TestListenerRegistryRemoveUnknownIsNoOp(t *testing.T) {
	reg := newListenerRegistry()
	a := &recordingListener{}
	reg.Remove(a) // never added
	reg.Add(a)
	reg.Notify(Event{})
	if a.count() != 1 {
		t.Errorf("expected listener notified after no-op remove")
	}
}
