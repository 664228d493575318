package session

import (
	"testing"

	"github.com/user/gattwire/att"
	"github.com/user/gattwire/gatt"
)

func newTestDatabaseForWrites(t *testing.T) (*gatt.Database, uint16) {
	t.Helper()
	db := gatt.NewDatabase()
	svc := db.AddService(att.UUID16(0x1234), true)
	ch := svc.AddCharacteristic(att.UUID16(0xABCD), gatt.PropRead|gatt.PropWrite, gatt.PermReadable|gatt.PermWritable, []byte{})
	if err := db.AssignHandles(); err != nil {
		t.Fatalf("AssignHandles() error = %v", err)
	}
	return db, ch.ValueHandle()
}

// spliceApply reproduces the splice-at-offset rule responder.applyWrite uses,
// against a plain database, for exercising preparedWriteQueue.Commit without
// pulling in a full responder.
func spliceApply(db *gatt.Database) func(handle, offset uint16, value []byte) *att.Error {
	return func(handle, offset uint16, value []byte) *att.Error {
		a, err := db.AttributeByHandle(handle)
		if err != nil {
			return att.NewError(att.ErrInvalidHandle, att.OpExecuteWriteRequest, handle)
		}
		if int(offset) > len(a.Value) {
			return att.NewError(att.ErrInvalidOffset, att.OpExecuteWriteRequest, handle)
		}
		newValue := append(append([]byte{}, a.Value[:offset]...), value...)
		if err := db.SetAttributeValue(handle, newValue); err != nil {
			return att.NewError(att.ErrInvalidHandle, att.OpExecuteWriteRequest, handle)
		}
		return nil
	}
}

func TestPreparedWriteQueueCommitConcatenatesOffsets(t *testing.T) {
	db, handle := newTestDatabaseForWrites(t)
	q := newPreparedWriteQueue()

	if err := q.Stage(handle, 0, []byte("hello ")); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if err := q.Stage(handle, 6, []byte("world")); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if err := q.Commit(spliceApply(db)); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	a, err := db.AttributeByHandle(handle)
	if err != nil {
		t.Fatalf("AttributeByHandle() error = %v", err)
	}
	if string(a.Value) != "hello world" {
		t.Errorf("value = %q, want %q", a.Value, "hello world")
	}
}

func TestPreparedWriteQueueCommitRejectsGapInOffsets(t *testing.T) {
	db, handle := newTestDatabaseForWrites(t)
	q := newPreparedWriteQueue()

	if err := q.Stage(handle, 0, []byte("abc")); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if err := q.Stage(handle, 10, []byte("xyz")); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	err := q.Commit(spliceApply(db))
	ae, ok := err.(*att.Error)
	if !ok || ae.Code != att.ErrInvalidOffset {
		t.Fatalf("Commit() error = %v, want *att.Error{ErrInvalidOffset}", err)
	}
}

func TestPreparedWriteQueueResetDiscardsEntries(t *testing.T) {
	db, handle := newTestDatabaseForWrites(t)
	q := newPreparedWriteQueue()

	if err := q.Stage(handle, 0, []byte("discarded")); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	q.Reset()
	if len(q.Entries()) != 0 {
		t.Errorf("Entries() after Reset() = %v, want empty", q.Entries())
	}
	if err := q.Commit(spliceApply(db)); err != nil {
		t.Fatalf("Commit() on empty queue error = %v", err)
	}
	a, _ := db.AttributeByHandle(handle)
	if len(a.Value) != 0 {
		t.Errorf("value = %q after reset-then-commit, want empty", a.Value)
	}
}

func TestPreparedWriteQueueRejectsOverflow(t *testing.T) {
	q := newPreparedWriteQueue()
	var lastErr error
	for i := 0; i < maxPreparedWriteEntries+1; i++ {
		lastErr = q.Stage(1, 0, []byte{byte(i)})
	}
	ae, ok := lastErr.(*att.Error)
	if !ok || ae.Code != att.ErrPrepareQueueFull {
		t.Fatalf("Stage() past capacity error = %v, want *att.Error{ErrPrepareQueueFull}", lastErr)
	}
}
