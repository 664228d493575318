package session

import (
	"sync"
	"time"

	"github.com/user/gattwire/att"
)

// transactionResult is delivered to the caller that started a request.
type transactionResult struct {
	Reply att.PDU
	Err   error
}

// transactionPipeline enforces the ATT rule that only one request may be
// outstanding at a time: do holds reqMu for a request's whole lifecycle
// (register -> send -> await reply), so another caller's do blocks until the
// previous request has completed. The pending slot is guarded by the
// separate mu, so complete and fail, called from the dispatch loop or from
// teardown while do is waiting, can find it. reqMu is a plain
// (non-reentrant) mutex.
type transactionPipeline struct {
	reqMu   sync.Mutex
	mu      sync.Mutex
	pending *pendingTransaction
}

type pendingTransaction struct {
	requestOpcode uint8
	handle        uint16
	resultC       chan transactionResult
}

func newTransactionPipeline() *transactionPipeline {
	return &transactionPipeline{}
}

// do sends one request and waits for its matching reply, owning the
// session's single-outstanding-request slot for the duration of the call.
// send is invoked with reqMu held so nothing else can race a second request
// onto the wire first.
func (p *transactionPipeline) do(requestOpcode uint8, handle uint16, timeout time.Duration, send func() error) (att.PDU, error) {
	p.reqMu.Lock()
	defer p.reqMu.Unlock()

	resultC := make(chan transactionResult, 1)
	p.mu.Lock()
	p.pending = &pendingTransaction{requestOpcode: requestOpcode, handle: handle, resultC: resultC}
	p.mu.Unlock()

	if err := send(); err != nil {
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-resultC:
		return res.Reply, res.Err
	case <-timer.C:
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
		return nil, wrap(ErrTimeout, "no reply to opcode 0x%02X (handle 0x%04X) within %s", requestOpcode, handle, timeout)
	}
}

// complete delivers a response PDU to the pending request, if its opcode
// matches what was expected (the request's response opcode, or a generic
// ERROR_RSP). Returns false if there was no pending request or the opcode
// did not match, so the reader loop can treat it as an unsolicited PDU.
func (p *transactionPipeline) complete(responseOpcode uint8, reply att.PDU) bool {
	p.mu.Lock()
	pending := p.pending
	if pending == nil {
		p.mu.Unlock()
		return false
	}
	expected := att.ResponseOpcodeFor(pending.requestOpcode)
	if responseOpcode != expected && responseOpcode != att.OpErrorResponse {
		p.mu.Unlock()
		return false
	}
	p.pending = nil
	p.mu.Unlock()

	pending.resultC <- transactionResult{Reply: reply}
	return true
}

// fail aborts the pending request (transport closed, malformed frame).
func (p *transactionPipeline) fail(err error) {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if pending == nil {
		return
	}
	pending.resultC <- transactionResult{Err: err}
}

// hasPending reports whether a request is currently outstanding.
func (p *transactionPipeline) hasPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}
