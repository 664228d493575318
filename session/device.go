package session

import (
	"sync"

	"github.com/user/gattwire/gatt"
)

// Role identifies which GATT role the local device takes on a link.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// AddressType distinguishes public and random device addresses.
type AddressType int

const (
	AddressPublic AddressType = iota
	AddressRandom
)

// DeviceHandle is the narrow view of the owning device a Session needs:
// identity, local role, and the attribute database to serve requests
// against when acting as a GATT server. A Session never owns the device;
// it is handed a DeviceHandle at construction and the device clears it on
// teardown.
type DeviceHandle interface {
	AddressAndType() (string, AddressType)
	LocalGATTRole() Role
	ServerDatabase() *gatt.Database
	Disconnect(reason error) error
}

// deviceRef holds a DeviceHandle that can be cleared exactly once. After
// clearing, Get returns ErrNotAvailable instead of a stale or nil handle,
// so a goroutine racing Close observes a clean failure rather than a panic.
type deviceRef struct {
	mu     sync.RWMutex
	handle DeviceHandle
}

func newDeviceRef(h DeviceHandle) *deviceRef {
	return &deviceRef{handle: h}
}

func (r *deviceRef) Get() (DeviceHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.handle == nil {
		return nil, ErrNotAvailable
	}
	return r.handle, nil
}

func (r *deviceRef) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handle = nil
}
