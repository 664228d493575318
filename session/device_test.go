package session

import (
	"errors"
	"testing"

	"github.com/user/gattwire/gatt"
)

type fakeDevice struct {
	role Role
	db   *gatt.Database

	disconnectCalls  int
	disconnectReason error
}

func (f *fakeDevice) AddressAndType() (string, AddressType) {
	return "00:11:22:33:44:55", AddressPublic
}
func (f *fakeDevice) LocalGATTRole() Role            { return f.role }
func (f *fakeDevice) ServerDatabase() *gatt.Database { return f.db }
func (f *fakeDevice) Disconnect(reason error) error {
	f.disconnectCalls++
	f.disconnectReason = reason
	return nil
}

func TestDeviceRefGetAndClear(t *testing.T) {
	d := &fakeDevice{role: RoleClient}
	ref := newDeviceRef(d)

	got, err := ref.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != d {
		t.Errorf("Get() returned a different handle")
	}

	ref.Clear()
	if _, err := ref.Get(); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Get() after Clear() error = %v, want ErrNotAvailable", err)
	}
}
