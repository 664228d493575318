package session

import (
	"time"

	"github.com/user/gattwire/att"
	"github.com/user/gattwire/gatt"
	"github.com/user/gattwire/l2cap"
	logpkg "github.com/user/gattwire/log"
)

const readBufferSize = l2cap.HeaderLen + l2cap.MaxATTMTU

var zeroTime time.Time

// readLoop is the per-session goroutine that turns raw transport bytes into
// decoded ATT messages and feeds them into the bounded PDU queue. It never
// touches the transaction pipeline, responder, or listeners directly; a
// slow dispatch loop applies backpressure through the queue's blocking
// Push rather than losing traffic.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	buf := make([]byte, readBufferSize)

	for {
		n, status, err := s.transport.Read(buf)
		if status == l2cap.ReadClosed {
			s.fail(wrap(ErrIoError, "transport closed"))
			return
		}
		if err != nil {
			logpkg.Warn("session", "read error: %v", err)
			s.fail(wrap(ErrIoError, "%v", err))
			return
		}
		if n == 0 {
			continue
		}

		pkt, err := l2cap.Decode(buf[:n])
		if err != nil {
			logpkg.Warn("session", "l2cap decode failed: %v", err)
			continue
		}
		if pkt.ChannelID != l2cap.ChannelATT {
			continue
		}

		msg, err := att.Decode(pkt.Payload)
		if err != nil {
			logpkg.Warn("session", "att decode failed: %v", err)
			continue
		}
		if !s.queue.Push(msg) {
			return
		}
	}
}

// dispatchLoop is the sole consumer of the PDU queue: it routes each
// decoded message to the transaction pipeline, the listener fan-out, or the
// server responder depending on its classification.
func (s *Session) dispatchLoop() {
	defer close(s.dispatchDone)
	for {
		msg, ok := s.queue.Pop(zeroTime)
		if !ok {
			return
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg att.Message) {
	switch msg.Kind() {
	case att.KindResponse, att.KindConfirmation:
		opcode := msg.PDU.Opcode()
		if !s.tx.complete(opcode, msg.PDU) {
			logpkg.Warn("session", "unsolicited response opcode 0x%02X", opcode)
		}

	case att.KindNotification:
		n := msg.PDU.(*att.HandleValueNotification)
		s.listeners.Notify(Event{Handle: n.Handle, Value: n.Value, Characteristic: s.resolveCharacteristic(n.Handle)})

	case att.KindIndication:
		ind := msg.PDU.(*att.HandleValueIndication)
		cfmSent := false
		if s.autoConfirmIndications() {
			if err := s.sendIndicationConfirmation(); err != nil {
				logpkg.Warn("session", "auto-confirm failed: %v", err)
			} else {
				cfmSent = true
			}
		}
		s.listeners.Notify(Event{
			Handle: ind.Handle, Value: ind.Value, Indication: true, CfmSent: cfmSent,
			Characteristic: s.resolveCharacteristic(ind.Handle),
		})

	case att.KindRequest, att.KindCommand:
		s.serveRequest(msg.PDU)

	default:
		logpkg.Debug("session", "dropping undefined PDU opcode 0x%02X", msg.PDU.Opcode())
	}
}

// resolveCharacteristic maps a notification/indication's value handle back
// to the characteristic a Listener can match against. Returns a stub
// carrying only ValueHandle if the session never discovered it (or is
// server-role, which never receives these PDUs in practice).
func (s *Session) resolveCharacteristic(handle uint16) gatt.DiscoveredCharacteristic {
	if s.discovery != nil {
		if c, ok := s.discovery.CharacteristicByValueHandle(handle); ok {
			return c
		}
	}
	return gatt.DiscoveredCharacteristic{ValueHandle: handle}
}

func (s *Session) serveRequest(req att.PDU) {
	if mtuReq, ok := req.(*att.ExchangeMTURequest); ok {
		s.handleExchangeMTURequest(mtuReq)
		return
	}

	if s.responder == nil {
		if _, isCommand := req.(*att.WriteCommand); isCommand {
			return
		}
		_ = s.sendError(req.Opcode(), 0, att.ErrRequestNotSupported)
		return
	}

	reply, err := s.responder.Handle(req, s.UsedMTU())
	if err != nil {
		if _, isCommand := req.(*att.WriteCommand); isCommand {
			return
		}
		if ae, ok := err.(*att.Error); ok {
			_ = s.sendError(req.Opcode(), ae.Handle, ae.Code)
			return
		}
		_ = s.sendError(req.Opcode(), 0, att.ErrUnlikelyError)
		return
	}
	if reply == nil {
		return // command, no reply expected
	}
	if err := s.sendPDU(reply); err != nil {
		logpkg.Warn("session", "failed to send reply: %v", err)
	}
}
