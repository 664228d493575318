// Package session implements the client/server request pipeline that runs
// on top of a single ATT/GATT connection: PDU framing and dispatch, MTU
// negotiation, discovery, the attribute-read/write call surface, and the
// notification/indication fan-out.
package session

import (
	goerrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/gattwire/att"
	"github.com/user/gattwire/gatt"
	"github.com/user/gattwire/l2cap"
	logpkg "github.com/user/gattwire/log"
)

// State is a Session's position in its Created -> Connected ->
// Disconnecting -> Closed lifecycle. States only move forward.
type State int

const (
	StateCreated State = iota
	StateConnected
	StateDisconnecting
	StateClosed
)

// StateString renders a State for logs and DebugSnapshot.
func StateString(s State) string {
	switch s {
	case StateCreated:
		return "Created"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Session drives one ATT connection. Depending on the local GATT role it
// either serves requests against a gatt.Database (RoleServer) or issues
// requests and tracks discovery results against one (RoleClient); both
// roles share the same transaction pipeline, reader/dispatch loops, and
// notification fan-out.
type Session struct {
	id  uuid.UUID
	cfg Config

	transport l2cap.Transport
	device    *deviceRef
	role      Role

	tx        *transactionPipeline
	queue     *pduQueue
	listeners *listenerRegistry
	responder *responder

	// subs tracks CCCD state when this side is the GATT server; it is nil
	// for a client-role session.
	subs *gatt.SubscriptionTracker

	// discovery accumulates the remote attribute table when this side is
	// the GATT client; it is nil for a server-role session.
	discovery *gatt.DiscoveryCache

	stateMu sync.RWMutex
	state   State

	mtuMu     sync.RWMutex
	serverMTU int
	usedMTU   int

	sendMu sync.Mutex

	confirmMu   sync.RWMutex
	autoConfirm bool

	closeOnce    sync.Once
	readerDone   chan struct{}
	dispatchDone chan struct{}
}

// New constructs a Session over an already-open transport and starts its
// reader and dispatch goroutines. cfg is normalized in place before use.
func New(transport l2cap.Transport, device DeviceHandle, cfg Config) *Session {
	cfg.Normalize()

	role := device.LocalGATTRole()
	s := &Session{
		id:           uuid.New(),
		cfg:          cfg,
		transport:    transport,
		device:       newDeviceRef(device),
		role:         role,
		tx:           newTransactionPipeline(),
		queue:        newPDUQueue(cfg.PDURingCapacity),
		listeners:    newListenerRegistry(),
		serverMTU:    l2cap.MinATTMTU,
		usedMTU:      l2cap.MinATTMTU,
		readerDone:   make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}

	if role == RoleServer {
		s.subs = gatt.NewSubscriptionTracker()
		s.responder = newResponder(device.ServerDatabase(), s.subs)
	} else {
		s.discovery = gatt.NewDiscoveryCache()
	}

	s.setState(StateConnected)
	go s.readLoop()
	go s.dispatchLoop()

	logpkg.Info("session", "opened %s (role=%v)", s.id, role)
	return s
}

// ID returns the session's log/debug correlation identifier. It never
// appears on the wire.
func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if st < s.state {
		return
	}
	s.state = st
}

// StateString returns the session's current lifecycle state as a string.
func (s *Session) StateString() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return StateString(s.state)
}

func (s *Session) requireConnected() error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.state != StateConnected {
		return wrap(ErrNotConnected, "session is %s", StateString(s.state))
	}
	return nil
}

// SetLocalMTU changes the MTU this side advertises on the next MTU
// exchange, clamped to [MinATTMTU, MaxATTMTU]. The default is MinATTMTU.
func (s *Session) SetLocalMTU(mtu int) {
	if mtu < l2cap.MinATTMTU {
		mtu = l2cap.MinATTMTU
	}
	if mtu > l2cap.MaxATTMTU {
		mtu = l2cap.MaxATTMTU
	}
	s.mtuMu.Lock()
	s.serverMTU = mtu
	s.mtuMu.Unlock()
}

// ServerMTU returns the MTU this side advertised during negotiation.
func (s *Session) ServerMTU() int {
	s.mtuMu.RLock()
	defer s.mtuMu.RUnlock()
	return s.serverMTU
}

// UsedMTU returns the negotiated MTU in effect for the connection: the
// lesser of both sides' advertised values, or MinATTMTU before negotiation
// completes.
func (s *Session) UsedMTU() int {
	s.mtuMu.RLock()
	defer s.mtuMu.RUnlock()
	return s.usedMTU
}

func (s *Session) handleExchangeMTURequest(req *att.ExchangeMTURequest) {
	s.mtuMu.Lock()
	server := s.serverMTU
	used := int(req.ClientRxMTU)
	if server < used {
		used = server
	}
	if used < l2cap.MinATTMTU {
		used = l2cap.MinATTMTU
	}
	s.usedMTU = used
	s.mtuMu.Unlock()

	_ = s.sendPDU(&att.ExchangeMTUResponse{ServerRxMTU: uint16(server)})
	logpkg.Info("session", "MTU negotiated to %d (peer requested %d)", used, req.ClientRxMTU)
}

// ExchangeMTU performs the client-initiated MTU exchange. clientMTU is
// clamped to [MinATTMTU, MaxATTMTU] before being sent.
func (s *Session) ExchangeMTU(clientMTU int) (int, error) {
	if err := s.requireConnected(); err != nil {
		return 0, err
	}
	if clientMTU < l2cap.MinATTMTU {
		clientMTU = l2cap.MinATTMTU
	}
	if clientMTU > l2cap.MaxATTMTU {
		clientMTU = l2cap.MaxATTMTU
	}

	reply, err := s.do(att.OpExchangeMTURequest, 0, s.cfg.InitialReplyTimeout, func() error {
		return s.sendPDU(&att.ExchangeMTURequest{ClientRxMTU: uint16(clientMTU)})
	})
	if err != nil {
		return 0, err
	}
	resp, ok := reply.(*att.ExchangeMTUResponse)
	if !ok {
		return 0, s.errorFromReply(reply, att.OpExchangeMTURequest, 0)
	}

	s.mtuMu.Lock()
	used := clientMTU
	if int(resp.ServerRxMTU) < used {
		used = int(resp.ServerRxMTU)
	}
	s.usedMTU = used
	s.mtuMu.Unlock()

	return used, nil
}

// do runs a request through the transaction pipeline and, on a timeout or
// transport I/O error, tears the session down the same way the reader loop
// would: a request that never got an answer means the link can no longer be
// trusted for anything else either.
func (s *Session) do(requestOpcode uint8, handle uint16, timeout time.Duration, send func() error) (att.PDU, error) {
	reply, err := s.tx.do(requestOpcode, handle, timeout, send)
	if err != nil && (goerrors.Is(err, ErrTimeout) || goerrors.Is(err, ErrIoError)) {
		s.fail(err)
	}
	return reply, err
}

// errorFromReply converts an ERROR_RSP reply (or any other unexpected
// reply shape) into a Go error.
func (s *Session) errorFromReply(reply att.PDU, requestOpcode uint8, handle uint16) error {
	if ae, ok := reply.(*att.ErrorResponse); ok {
		return att.NewError(ae.ErrorCode, ae.RequestOpcode, ae.Handle)
	}
	return wrap(ErrUnexpectedReply, "unexpected reply type %T to opcode 0x%02X", reply, requestOpcode)
}

// SetReadAuthorizer installs a callback the server consults, after the
// static permission-bit check passes, before serving a READ_REQ or
// READ_BLOB_REQ. Returning a non-nil error rejects the read; an *att.Error
// is sent as-is, any other error becomes ErrReadNotPermitted.
// Passing nil clears a previously installed authorizer. Only meaningful on
// a server-role session.
func (s *Session) SetReadAuthorizer(fn func(handle uint16) error) {
	if s.responder == nil {
		return
	}
	if fn == nil {
		s.responder.onReadVeto = nil
		return
	}
	s.responder.onReadVeto = func(handle uint16) *att.Error {
		if err := fn(handle); err != nil {
			if ae, ok := err.(*att.Error); ok {
				return ae
			}
			return att.NewError(att.ErrReadNotPermitted, att.OpReadRequest, handle)
		}
		return nil
	}
}

// SetWriteAuthorizer installs the write-side equivalent of
// SetReadAuthorizer; a plain (non-*att.Error) error becomes
// ErrWriteNotPermitted. It is never consulted for a CCCD write, which
// follows its own no-op/unchanged-value rules regardless. Only meaningful on
// a server-role session.
func (s *Session) SetWriteAuthorizer(fn func(handle uint16, offset uint16, value []byte) error) {
	if s.responder == nil {
		return
	}
	if fn == nil {
		s.responder.onWriteVeto = nil
		return
	}
	s.responder.onWriteVeto = func(handle uint16, offset uint16, value []byte) *att.Error {
		if err := fn(handle, offset, value); err != nil {
			if ae, ok := err.(*att.Error); ok {
				return ae
			}
			return att.NewError(att.ErrWriteNotPermitted, att.OpWriteRequest, handle)
		}
		return nil
	}
}

// AddListener registers l to receive notifications, indications, and
// lifecycle events.
func (s *Session) AddListener(l Listener) { s.listeners.Add(l) }

// RemoveListener unregisters a previously added listener.
func (s *Session) RemoveListener(l Listener) { s.listeners.Remove(l) }

// SetSendIndicationConfirmation toggles whether the session automatically
// confirms indications as they arrive, instead of requiring the caller to
// call SendIndicationConfirmation.
func (s *Session) SetSendIndicationConfirmation(auto bool) {
	s.confirmMu.Lock()
	defer s.confirmMu.Unlock()
	s.autoConfirm = auto
}

func (s *Session) autoConfirmIndications() bool {
	s.confirmMu.RLock()
	defer s.confirmMu.RUnlock()
	return s.autoConfirm
}

// SendIndicationConfirmation sends a manual HANDLE_VALUE_CFM, for callers
// that disabled auto-confirmation to control pacing themselves.
func (s *Session) SendIndicationConfirmation() error {
	return s.sendIndicationConfirmation()
}

func (s *Session) sendIndicationConfirmation() error {
	return s.sendPDU(&att.HandleValueConfirmation{})
}

// sendPDU encodes and writes pdu, serializing concurrent writers so two
// goroutines calling session methods at once cannot interleave partial
// frames on the wire. A write failure tears the session down through fail,
// which is started in its own goroutine; sendPDU returns the write error
// without waiting for it.
func (s *Session) sendPDU(pdu att.PDU) error {
	raw, err := att.Encode(pdu)
	if err != nil {
		return wrap(ErrIoError, "encode failed: %v", err)
	}
	frame := l2cap.NewATTPacket(raw).Encode()

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if _, err := s.transport.Write(frame); err != nil {
		wrapped := wrap(ErrIoError, "%v", err)
		go s.fail(wrapped)
		return wrapped
	}
	return nil
}

func (s *Session) sendError(requestOpcode uint8, handle uint16, code uint8) error {
	return s.sendPDU(&att.ErrorResponse{RequestOpcode: requestOpcode, Handle: handle, ErrorCode: code})
}

// fail aborts any pending request and tears the session down the same way
// Close does, additionally reporting err as the reason on the device
// handle. It is called by the reader loop when the transport reports an I/O
// error or closes, and by do/sendPDU on a timeout or write failure. Close
// runs in its own goroutine: fail can be invoked from inside the reader
// loop itself, and Close blocks until that same loop's readerDone channel
// closes, so running it inline here would deadlock.
func (s *Session) fail(err error) {
	s.setState(StateDisconnecting)
	s.listeners.Notify(Event{State: StateDisconnecting})
	logpkg.Warn("session", "%s failing: %v", s.id, err)
	go s.closeWithReason(err)
}

// Close tears the session down: it cancels any pending request, closes the
// PDU queue, closes the transport, waits for the reader and dispatch
// goroutines to exit, disconnects and clears the device handle. Calling
// Close more than once is safe; only the first call does any work.
func (s *Session) Close() error {
	return s.closeWithReason(wrap(ErrNotConnected, "session closed"))
}

func (s *Session) closeWithReason(reason error) error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.setState(StateDisconnecting)
		s.tx.fail(reason)
		s.queue.Close()
		closeErr = s.transport.Close()

		<-s.readerDone
		<-s.dispatchDone

		if s.subs != nil {
			s.subs.Clear()
		}
		if dev, err := s.device.Get(); err == nil {
			if derr := dev.Disconnect(reason); derr != nil {
				logpkg.Warn("session", "%s device disconnect: %v", s.id, derr)
			}
		}
		s.device.Clear()
		s.setState(StateClosed)
		s.listeners.Notify(Event{State: StateClosed})
		logpkg.Info("session", "closed %s", s.id)
	})
	return closeErr
}

// Ping performs a zero-cost round trip to confirm the link and pipeline are
// alive, using a FIND_INFORMATION_REQ over the handle range [1, 1] as the
// underlying request. timeout overrides the configured read
// reply timeout for this call only; zero uses the configured default.
func (s *Session) Ping(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.cfg.ReadReplyTimeout
	}
	// Any reply at all, including an ERROR_RSP, proves the pipeline is
	// alive; only a timeout or transport failure is a real Ping failure.
	_, err := s.do(att.OpFindInformationRequest, 1, timeout, func() error {
		return s.sendPDU(&att.FindInformationRequest{StartHandle: 1, EndHandle: 1})
	})
	return err
}
