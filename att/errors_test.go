package att

import "testing"

func TestNewErrorMessage(t *testing.T) {
	err := NewError(ErrAttributeNotFound, OpReadByGroupTypeRequest, 0)
	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
	code, ok := CodeOf(err)
	if !ok || code != ErrAttributeNotFound {
		t.Errorf("CodeOf() = (%d, %v), want (%d, true)", code, ok, ErrAttributeNotFound)
	}
}

func TestCodeOfNonATTError(t *testing.T) {
	if _, ok := CodeOf(&MalformedPDUError{Opcode: 0x01, Reason: "x"}); ok {
		t.Error("CodeOf should not match a non-*Error")
	}
}

func TestApplicationErrorNameFallback(t *testing.T) {
	err := NewError(0x85, OpWriteRequest, 0x10)
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty message for application error range")
	}
}
