package session

import (
	"errors"
	"testing"
	"time"

	"github.com/user/gattwire/att"
)

func TestTransactionPipelineCompletesOnMatchingReply(t *testing.T) {
	p := newTransactionPipeline()
	reply := &att.ReadResponse{Value: []byte{0xAB}}

	go func() {
		for !p.hasPending() {
			time.Sleep(time.Millisecond)
		}
		if !p.complete(att.OpReadResponse, reply) {
			t.Errorf("complete() returned false for a matching reply")
		}
	}()

	got, err := p.do(att.OpReadRequest, 3, time.Second, func() error { return nil })
	if err != nil {
		t.Fatalf("do() error = %v", err)
	}
	if got != att.PDU(reply) {
		t.Errorf("do() returned %#v, want %#v", got, reply)
	}
}

func TestTransactionPipelineTimesOut(t *testing.T) {
	p := newTransactionPipeline()
	_, err := p.do(att.OpReadRequest, 3, 10*time.Millisecond, func() error { return nil })
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("do() error = %v, want ErrTimeout", err)
	}
	if p.hasPending() {
		t.Errorf("pending transaction left behind after timeout")
	}
}

func TestTransactionPipelineSendFailureAbortsImmediately(t *testing.T) {
	p := newTransactionPipeline()
	sendErr := errors.New("write failed")
	_, err := p.do(att.OpReadRequest, 3, time.Second, func() error { return sendErr })
	if !errors.Is(err, sendErr) {
		t.Errorf("do() error = %v, want %v", err, sendErr)
	}
	if p.hasPending() {
		t.Errorf("pending transaction left behind after send failure")
	}
}

func TestTransactionPipelineCompleteAcceptsErrorResponse(t *testing.T) {
	p := newTransactionPipeline()
	errReply := &att.ErrorResponse{RequestOpcode: att.OpReadRequest, Handle: 3, ErrorCode: att.ErrInvalidHandle}

	go func() {
		for !p.hasPending() {
			time.Sleep(time.Millisecond)
		}
		p.complete(att.OpErrorResponse, errReply)
	}()

	got, err := p.do(att.OpReadRequest, 3, time.Second, func() error { return nil })
	if err != nil {
		t.Fatalf("do() error = %v", err)
	}
	if got != att.PDU(errReply) {
		t.Errorf("do() returned %#v, want the error reply", got)
	}
}

func TestTransactionPipelineCompleteRejectsMismatchedOpcode(t *testing.T) {
	p := newTransactionPipeline()
	_, err := p.do(att.OpReadRequest, 3, 30*time.Millisecond, func() error {
		go func() {
			if p.complete(att.OpWriteResponse, &att.WriteResponse{}) {
				t.Errorf("complete() accepted a mismatched opcode")
			}
		}()
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("do() error = %v, want ErrTimeout after mismatched reply was rejected", err)
	}
}

func TestTransactionPipelineFailDeliversError(t *testing.T) {
	p := newTransactionPipeline()
	failErr := errors.New("transport closed")

	go func() {
		for !p.hasPending() {
			time.Sleep(time.Millisecond)
		}
		p.fail(failErr)
	}()

	_, err := p.do(att.OpReadRequest, 3, time.Second, func() error { return nil })
	if !errors.Is(err, failErr) {
		t.Errorf("do() error = %v, want %v", err, failErr)
	}
}
