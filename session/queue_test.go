package session

import (
	"testing"
	"time"

	"github.com/user/gattwire/att"
)

func readMsg(handle uint16) att.Message {
	return att.Message{PDU: &att.ReadRequest{Handle: handle}}
}

func TestPDUQueueFIFO(t *testing.T) {
	q := newPDUQueue(4)
	q.Push(readMsg(1))
	q.Push(readMsg(2))
	q.Push(readMsg(3))

	for _, want := range []uint16{1, 2, 3} {
		msg, ok := q.Pop(time.Now().Add(time.Second))
		if !ok {
			t.Fatalf("Pop() returned no message, want handle %d", want)
		}
		got := msg.PDU.(*att.ReadRequest).Handle
		if got != want {
			t.Errorf("Pop() handle = %d, want %d", got, want)
		}
	}
}

func TestPDUQueuePushBlocksWhenFull(t *testing.T) {
	q := newPDUQueue(2)
	q.Push(readMsg(1))
	q.Push(readMsg(2))

	pushed := make(chan bool, 1)
	go func() { pushed <- q.Push(readMsg(3)) }()

	select {
	case <-pushed:
		t.Fatal("Push on a full queue returned before a slot freed")
	case <-time.After(50 * time.Millisecond):
	}

	msg, ok := q.Pop(time.Now().Add(time.Second))
	if !ok || msg.PDU.(*att.ReadRequest).Handle != 1 {
		t.Fatalf("Pop() = (%v, %v), want handle 1", msg, ok)
	}

	select {
	case ok := <-pushed:
		if !ok {
			t.Fatal("Push() = false, want true once a slot freed")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Push did not complete after a slot freed")
	}

	for _, want := range []uint16{2, 3} {
		msg, ok := q.Pop(time.Now().Add(time.Second))
		if !ok {
			t.Fatalf("Pop() returned no message, want handle %d", want)
		}
		if got := msg.PDU.(*att.ReadRequest).Handle; got != want {
			t.Errorf("Pop() handle = %d, want %d", got, want)
		}
	}
}

func TestPDUQueuePushUnblocksOnClose(t *testing.T) {
	q := newPDUQueue(1)
	q.Push(readMsg(1))

	pushed := make(chan bool, 1)
	go func() { pushed <- q.Push(readMsg(2)) }()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-pushed:
		if ok {
			t.Error("expected Push to report closed (false) after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Push did not unblock after Close")
	}
}

func TestPDUQueuePopDeadline(t *testing.T) {
	q := newPDUQueue(4)
	start := time.Now()
	_, ok := q.Pop(start.Add(50 * time.Millisecond))
	if ok {
		t.Fatal("expected Pop to time out on an empty queue")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Pop returned too early: %v", elapsed)
	}
}

func TestPDUQueueCloseUnblocksPop(t *testing.T) {
	q := newPDUQueue(4)
	done := make(chan struct{})
	go func() {
		_, ok := q.Pop(time.Time{})
		if ok {
			t.Error("expected Pop to report closed, not a message")
		}
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not unblock after Close")
	}
}
