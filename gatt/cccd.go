package gatt

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// CCCD bit values written by a client to enable/disable notifications and
// indications on a characteristic.
const (
	CCCDNotificationsEnabled uint16 = 0x0001
	CCCDIndicationsEnabled   uint16 = 0x0002
)

// CCCDConfig is the decoded form of a Client Characteristic Configuration
// Descriptor value.
type CCCDConfig struct {
	NotifyEnabled   bool
	IndicateEnabled bool
}

// EncodeCCCDValue serialises a config to its 2-byte little-endian wire form.
func EncodeCCCDValue(cfg CCCDConfig) []byte {
	var v uint16
	if cfg.NotifyEnabled {
		v |= CCCDNotificationsEnabled
	}
	if cfg.IndicateEnabled {
		v |= CCCDIndicationsEnabled
	}
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return buf
}

// DecodeCCCDValue parses a 2-byte CCCD write value. A CCCD write with any
// other non-zero length is a protocol error the responder reports as
// att.ErrInvalidAttributeValueLength; the responder treats a zero-length
// CCCD write as a no-op before decoding.
func DecodeCCCDValue(raw []byte) (CCCDConfig, error) {
	if len(raw) != 2 {
		return CCCDConfig{}, fmt.Errorf("gatt: CCCD value must be 2 bytes, got %d", len(raw))
	}
	v := binary.LittleEndian.Uint16(raw)
	return CCCDConfig{
		NotifyEnabled:   v&CCCDNotificationsEnabled != 0,
		IndicateEnabled: v&CCCDIndicationsEnabled != 0,
	}, nil
}

// SubscriptionTracker records, per session, which characteristic value
// handles a client has subscribed to and invokes a callback whenever a CCCD
// write changes that state. A new tracker is created per session: CCCD
// state is never shared across connections, and closing a session discards
// it along with the tracker.
type SubscriptionTracker struct {
	mu            sync.RWMutex
	subscriptions map[uint16]CCCDConfig
	OnChange      func(valueHandle uint16, cfg CCCDConfig)
}

// NewSubscriptionTracker returns an empty tracker.
func NewSubscriptionTracker() *SubscriptionTracker {
	return &SubscriptionTracker{subscriptions: make(map[uint16]CCCDConfig)}
}

// Apply records cfg as the new state for valueHandle, firing OnChange only
// if it differs from what was already stored. A config with both bits clear
// removes the entry. The returned bool reports whether the stored state
// actually changed. Callers are responsible for decoding the wire value and
// masking it against the owning characteristic's declared Notify/Indicate
// properties before calling Apply; the tracker itself has no notion of a
// characteristic's properties.
func (t *SubscriptionTracker) Apply(valueHandle uint16, cfg CCCDConfig) bool {
	t.mu.Lock()
	old, existed := t.subscriptions[valueHandle]
	var changed bool
	if !cfg.NotifyEnabled && !cfg.IndicateEnabled {
		changed = existed
		delete(t.subscriptions, valueHandle)
	} else {
		changed = !existed || old != cfg
		t.subscriptions[valueHandle] = cfg
	}
	cb := t.OnChange
	t.mu.Unlock()
	if changed && cb != nil {
		cb(valueHandle, cfg)
	}
	return changed
}

// Get returns the current subscription state for a value handle.
func (t *SubscriptionTracker) Get(valueHandle uint16) (CCCDConfig, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cfg, ok := t.subscriptions[valueHandle]
	return cfg, ok
}

// Clear drops all subscription state, used when a session closes.
func (t *SubscriptionTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscriptions = make(map[uint16]CCCDConfig)
}
