package l2cap

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"
)

func TestStreamTransportOpenWriteRead(t *testing.T) {
	a, b := net.Pipe()
	ta := NewStreamTransport(a)
	tb := NewStreamTransport(b)
	defer ta.Close()
	defer tb.Close()

	if err := ta.Open(context.Background(), SecurityNone); err != nil {
		t.Fatal(err)
	}
	if err := tb.Open(context.Background(), SecurityEncrypted); err != nil {
		t.Fatal(err)
	}
	if !ta.IsOpen() || !tb.IsOpen() {
		t.Fatal("expected both transports to report open")
	}

	msg := []byte("hello")
	go func() { _, _ = ta.Write(msg) }()

	buf := make([]byte, 16)
	n, status, err := tb.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if status != ReadOK {
		t.Fatalf("status = %v, want ReadOK", status)
	}
	if !bytes.Equal(buf[:n], msg) {
		t.Errorf("read %q, want %q", buf[:n], msg)
	}
}

func TestStreamTransportCloseUnblocksRead(t *testing.T) {
	a, b := net.Pipe()
	ta := NewStreamTransport(a)
	tb := NewStreamTransport(b)
	if err := ta.Open(context.Background(), SecurityNone); err != nil {
		t.Fatal(err)
	}
	if err := tb.Open(context.Background(), SecurityNone); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 16)
		_, status, _ := tb.Read(buf)
		if status != ReadClosed {
			t.Errorf("status = %v, want ReadClosed", status)
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := tb.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not unblock after Close")
	}

	_ = ta.Close()
}

func TestStreamTransportCloseIsIdempotent(t *testing.T) {
	a, _ := net.Pipe()
	ta := NewStreamTransport(a)
	_ = ta.Open(context.Background(), SecurityNone)
	if err := ta.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ta.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}

func TestStreamTransportSecurityLevel(t *testing.T) {
	a, _ := net.Pipe()
	ta := NewStreamTransport(a)
	_ = ta.Open(context.Background(), SecurityNone)
	ta.SetSecurityLevel(SecurityAuthenticated)
	if ta.SecurityLevel() != SecurityAuthenticated {
		t.Errorf("SecurityLevel() = %v, want SecurityAuthenticated", ta.SecurityLevel())
	}
	_ = ta.Close()
}
