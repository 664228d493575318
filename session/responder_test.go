package session

import (
	"testing"

	"github.com/user/gattwire/att"
	"github.com/user/gattwire/gatt"
)

func newTestResponder(t *testing.T) (*responder, *gatt.Database, uint16, uint16) {
	t.Helper()
	db := gatt.NewDatabase()
	svc := db.AddService(att.UUID16(0x180F), true)
	ch := svc.AddCharacteristic(att.UUID16(0x2A19), gatt.PropRead|gatt.PropWrite|gatt.PropNotify, gatt.PermReadable|gatt.PermWritable, []byte{100})
	cccd := ch.AddCCCD()
	if err := db.AssignHandles(); err != nil {
		t.Fatalf("AssignHandles() error = %v", err)
	}
	return newResponder(db, gatt.NewSubscriptionTracker()), db, ch.ValueHandle(), cccd.Handle()
}

func TestResponderReadReturnsAttributeValue(t *testing.T) {
	r, _, valueHandle, _ := newTestResponder(t)
	reply, err := r.Handle(&att.ReadRequest{Handle: valueHandle}, 64)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	resp, ok := reply.(*att.ReadResponse)
	if !ok || len(resp.Value) != 1 || resp.Value[0] != 100 {
		t.Errorf("Handle() = %#v, want ReadResponse{100}", reply)
	}
}

func TestResponderReadUnknownHandleReturnsInvalidHandle(t *testing.T) {
	r, _, _, _ := newTestResponder(t)
	_, err := r.Handle(&att.ReadRequest{Handle: 0x9999}, 64)
	ae, ok := err.(*att.Error)
	if !ok || ae.Code != att.ErrInvalidHandle {
		t.Fatalf("Handle() error = %v, want *att.Error{ErrInvalidHandle}", err)
	}
}

func TestResponderWriteCCCDUpdatesSubscriptionTracker(t *testing.T) {
	r, _, valueHandle, cccdHandle := newTestResponder(t)
	value := gatt.EncodeCCCDValue(gatt.CCCDConfig{NotifyEnabled: true})

	var gotHandle uint16
	var gotCfg gatt.CCCDConfig
	r.onCCCChange = func(h uint16, cfg gatt.CCCDConfig) {
		gotHandle = h
		gotCfg = cfg
	}

	reply, err := r.Handle(&att.WriteRequest{Handle: cccdHandle, Value: value}, 64)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if _, ok := reply.(*att.WriteResponse); !ok {
		t.Fatalf("Handle() = %#v, want *att.WriteResponse", reply)
	}
	if gotHandle != valueHandle || !gotCfg.NotifyEnabled {
		t.Errorf("onCCCChange(%d, %+v), want (%d, NotifyEnabled=true)", gotHandle, gotCfg, valueHandle)
	}
}

func TestResponderWriteCCCDMasksIndicateAgainstDeclaredProperties(t *testing.T) {
	r, _, valueHandle, cccdHandle := newTestResponder(t)
	value := gatt.EncodeCCCDValue(gatt.CCCDConfig{NotifyEnabled: true, IndicateEnabled: true})

	var gotCfg gatt.CCCDConfig
	r.onCCCChange = func(h uint16, cfg gatt.CCCDConfig) {
		gotCfg = cfg
	}

	reply, err := r.Handle(&att.WriteRequest{Handle: cccdHandle, Value: value}, 64)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if _, ok := reply.(*att.WriteResponse); !ok {
		t.Fatalf("Handle() = %#v, want *att.WriteResponse", reply)
	}
	// The fixture characteristic declares Notify but not Indicate: the
	// requested Indicate bit must be masked off before it reaches the
	// subscription tracker.
	if !gotCfg.NotifyEnabled || gotCfg.IndicateEnabled {
		t.Errorf("onCCCChange cfg = %+v, want NotifyEnabled=true, IndicateEnabled=false", gotCfg)
	}

	stored, ok := r.subs.Get(valueHandle)
	if !ok || stored.IndicateEnabled {
		t.Errorf("subs.Get(%d) = (%+v, %v), want IndicateEnabled=false", valueHandle, stored, ok)
	}
}

func TestResponderWriteCommandReturnsNoReply(t *testing.T) {
	r, _, valueHandle, _ := newTestResponder(t)
	reply, err := r.Handle(&att.WriteCommand{Handle: valueHandle, Value: []byte{42}}, 64)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if reply != nil {
		t.Errorf("Handle(WriteCommand) reply = %#v, want nil", reply)
	}
}

func TestResponderReadByGroupTypeFindsPrimaryService(t *testing.T) {
	r, _, _, _ := newTestResponder(t)
	reply, err := r.Handle(&att.ReadByGroupTypeRequest{StartHandle: 1, EndHandle: 0xFFFF, Type: gatt.UUIDPrimaryService}, 64)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	resp, ok := reply.(*att.ReadByGroupTypeResponse)
	if !ok {
		t.Fatalf("Handle() = %#v, want *att.ReadByGroupTypeResponse", reply)
	}
	n, err := resp.NumElements()
	if err != nil || n != 1 {
		t.Fatalf("NumElements() = (%d, %v), want (1, nil)", n, err)
	}
}

func TestResponderPrepareAndExecuteWriteCommits(t *testing.T) {
	r, db, valueHandle, _ := newTestResponder(t)

	reply, err := r.Handle(&att.PrepareWriteRequest{Handle: valueHandle, Offset: 0, Value: []byte{9, 9}}, 64)
	if err != nil {
		t.Fatalf("PrepareWriteRequest error = %v", err)
	}
	if _, ok := reply.(*att.PrepareWriteResponse); !ok {
		t.Fatalf("Handle(prepare) = %#v, want *att.PrepareWriteResponse", reply)
	}

	reply, err = r.Handle(&att.ExecuteWriteRequest{Flags: att.ExecuteWriteCommit}, 64)
	if err != nil {
		t.Fatalf("ExecuteWriteRequest error = %v", err)
	}
	if _, ok := reply.(*att.ExecuteWriteResponse); !ok {
		t.Fatalf("Handle(execute) = %#v, want *att.ExecuteWriteResponse", reply)
	}

	a, err := db.AttributeByHandle(valueHandle)
	if err != nil {
		t.Fatalf("AttributeByHandle() error = %v", err)
	}
	if len(a.Value) != 2 || a.Value[0] != 9 || a.Value[1] != 9 {
		t.Errorf("value = %v, want [9 9]", a.Value)
	}
}

func TestResponderExecuteWriteCancelDiscardsStagedEntries(t *testing.T) {
	r, db, valueHandle, _ := newTestResponder(t)

	if _, err := r.Handle(&att.PrepareWriteRequest{Handle: valueHandle, Offset: 0, Value: []byte{1}}, 64); err != nil {
		t.Fatalf("PrepareWriteRequest error = %v", err)
	}
	if _, err := r.Handle(&att.ExecuteWriteRequest{Flags: att.ExecuteWriteCancel}, 64); err != nil {
		t.Fatalf("ExecuteWriteRequest(cancel) error = %v", err)
	}

	a, _ := db.AttributeByHandle(valueHandle)
	if len(a.Value) != 1 || a.Value[0] != 100 {
		t.Errorf("value = %v, want original [100] after cancel", a.Value)
	}
}

func TestResponderReadBlobAtOffsetZeroOnShortValueReturnsAttributeNotLong(t *testing.T) {
	r, _, valueHandle, _ := newTestResponder(t)
	_, err := r.Handle(&att.ReadBlobRequest{Handle: valueHandle, Offset: 0}, 64)
	ae, ok := err.(*att.Error)
	if !ok || ae.Code != att.ErrAttributeNotLong {
		t.Fatalf("Handle() error = %v, want *att.Error{ErrAttributeNotLong}", err)
	}
}

func TestResponderWriteRejectsLengthChangeOnFixedLengthAttribute(t *testing.T) {
	db := gatt.NewDatabase()
	svc := db.AddService(att.UUID16(0x180D), true)
	ch := svc.AddCharacteristic(att.UUID16(0x2A37), gatt.PropRead|gatt.PropWrite, gatt.PermReadable|gatt.PermWritable, []byte{0x00, 0x00}).SetFixedLength()
	if err := db.AssignHandles(); err != nil {
		t.Fatalf("AssignHandles() error = %v", err)
	}
	r := newResponder(db, gatt.NewSubscriptionTracker())

	if _, err := r.Handle(&att.WriteRequest{Handle: ch.ValueHandle(), Value: []byte{0x01, 0x02}}, 64); err != nil {
		t.Fatalf("same-length write error = %v, want nil", err)
	}
	_, err := r.Handle(&att.WriteRequest{Handle: ch.ValueHandle(), Value: []byte{0x01, 0x02, 0x03}}, 64)
	ae, ok := err.(*att.Error)
	if !ok || ae.Code != att.ErrInvalidAttributeValueLength {
		t.Fatalf("length-changing write error = %v, want *att.Error{ErrInvalidAttributeValueLength}", err)
	}
}

func TestResponderWriteRejectsValueBeyondMaxLength(t *testing.T) {
	db := gatt.NewDatabase()
	svc := db.AddService(att.UUID16(0x1234), true)
	ch := svc.AddCharacteristic(att.UUID16(0xABCD), gatt.PropRead|gatt.PropWrite, gatt.PermReadable|gatt.PermWritable, []byte{}).SetMaxLength(4)
	if err := db.AssignHandles(); err != nil {
		t.Fatalf("AssignHandles() error = %v", err)
	}
	r := newResponder(db, gatt.NewSubscriptionTracker())

	_, err := r.Handle(&att.WriteRequest{Handle: ch.ValueHandle(), Value: []byte{1, 2, 3, 4, 5}}, 64)
	ae, ok := err.(*att.Error)
	if !ok || ae.Code != att.ErrInvalidAttributeValueLength {
		t.Fatalf("over-capacity write error = %v, want *att.Error{ErrInvalidAttributeValueLength}", err)
	}
}

func TestResponderCCCDZeroLengthWriteIsNoOp(t *testing.T) {
	r, _, valueHandle, cccdHandle := newTestResponder(t)

	calls := 0
	r.onCCCChange = func(uint16, gatt.CCCDConfig) { calls++ }

	reply, err := r.Handle(&att.WriteRequest{Handle: cccdHandle, Value: nil}, 64)
	if err != nil {
		t.Fatalf("zero-length CCCD write error = %v, want nil", err)
	}
	if _, ok := reply.(*att.WriteResponse); !ok {
		t.Fatalf("Handle() = %#v, want *att.WriteResponse", reply)
	}
	if calls != 0 {
		t.Errorf("onCCCChange called %d times for a zero-length write, want 0", calls)
	}
	if _, ok := r.subs.Get(valueHandle); ok {
		t.Error("expected no subscription recorded after a zero-length CCCD write")
	}
}

func TestResponderWriteVetoRejectsWrite(t *testing.T) {
	r, _, valueHandle, _ := newTestResponder(t)
	r.onWriteVeto = func(handle uint16, offset uint16, value []byte) *att.Error {
		return att.NewError(att.ErrInsufficientAuthorization, att.OpWriteRequest, handle)
	}
	_, err := r.Handle(&att.WriteRequest{Handle: valueHandle, Value: []byte{1}}, 64)
	ae, ok := err.(*att.Error)
	if !ok || ae.Code != att.ErrInsufficientAuthorization {
		t.Fatalf("Handle() error = %v, want *att.Error{ErrInsufficientAuthorization}", err)
	}
}

func TestResponderReadVetoRejectsRead(t *testing.T) {
	r, _, valueHandle, _ := newTestResponder(t)
	r.onReadVeto = func(handle uint16) *att.Error {
		return att.NewError(att.ErrInsufficientAuthentication, att.OpReadRequest, handle)
	}
	_, err := r.Handle(&att.ReadRequest{Handle: valueHandle}, 64)
	ae, ok := err.(*att.Error)
	if !ok || ae.Code != att.ErrInsufficientAuthentication {
		t.Fatalf("Handle() error = %v, want *att.Error{ErrInsufficientAuthentication}", err)
	}
}
