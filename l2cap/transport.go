package l2cap

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SecurityLevel mirrors the link-layer encryption/authentication tier a
// transport was opened (or upgraded) at. The transport records it; the
// session layer does not consult it when serving attribute reads or writes.
type SecurityLevel int

const (
	// SecurityNone is an unencrypted, unauthenticated link.
	SecurityNone SecurityLevel = iota
	// SecurityLow is encrypted but paired without MITM protection (e.g.
	// Just Works pairing).
	SecurityLow
	// SecurityEncrypted is encrypted and paired with MITM protection.
	SecurityEncrypted
	// SecurityAuthenticated is encrypted, MITM-protected, and additionally
	// authenticated (e.g. a signed write's counter-based authentication).
	SecurityAuthenticated
	// SecurityFIPS is SecurityAuthenticated restricted to FIPS-approved
	// algorithms, the strictest tier an attribute's permissions can demand.
	SecurityFIPS
)

// ReadStatus distinguishes why Read returned, since a poll-based transport
// needs to tell "nothing arrived before the deadline" apart from "the
// connection is gone".
type ReadStatus int

const (
	ReadOK ReadStatus = iota
	ReadTimeout
	ReadClosed
)

// Transport is the adaptor a session reads raw bytes from and writes raw
// bytes to. It deliberately knows nothing about L2CAP framing or ATT; it is
// the seam that lets tests substitute an in-memory pipe for a real link.
type Transport interface {
	Open(ctx context.Context, level SecurityLevel) error
	Close() error
	Read(buf []byte) (int, ReadStatus, error)
	Write(buf []byte) (int, error)
	IsOpen() bool
	SetSecurityLevel(level SecurityLevel)
}

// StreamTransport adapts a net.Conn (a Unix socket or TCP connection
// standing in for an LE link) to Transport. Reads use a rolling deadline so
// a caller blocked on Read can be woken by Close from another goroutine.
type StreamTransport struct {
	conn net.Conn

	mu       sync.Mutex
	open     bool
	level    SecurityLevel
	closedCh chan struct{}
}

// NewStreamTransport wraps an already-dialed or already-accepted net.Conn.
func NewStreamTransport(conn net.Conn) *StreamTransport {
	return &StreamTransport{conn: conn, closedCh: make(chan struct{})}
}

// Open marks the transport usable at the given security level. The
// underlying net.Conn is already connected by the time it is handed to
// NewStreamTransport, so Open only validates state and records the level.
func (t *StreamTransport) Open(ctx context.Context, level SecurityLevel) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return errors.New("l2cap: transport already open")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	t.level = level
	t.open = true
	return nil
}

// IsOpen reports whether the transport has been opened and not yet closed.
func (t *StreamTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// SetSecurityLevel records a new security tier, e.g. after an on-the-fly
// pairing upgrade. It does not itself trigger pairing.
func (t *StreamTransport) SetSecurityLevel(level SecurityLevel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.level = level
}

// SecurityLevel returns the level last recorded by Open/SetSecurityLevel.
func (t *StreamTransport) SecurityLevel() SecurityLevel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level
}

const pollInterval = 200 * time.Millisecond

// Read blocks until at least one byte arrives, the transport is closed, or
// the underlying connection reports an error. It polls with a short
// deadline rather than blocking indefinitely so a concurrent Close unblocks
// it promptly instead of leaving the reader goroutine parked in a syscall.
func (t *StreamTransport) Read(buf []byte) (int, ReadStatus, error) {
	for {
		select {
		case <-t.closedCh:
			return 0, ReadClosed, nil
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := t.conn.Read(buf)
		if n > 0 {
			return n, ReadOK, nil
		}
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}
		if errors.Is(err, io.EOF) {
			return 0, ReadClosed, nil
		}
		return 0, ReadClosed, errors.Wrap(err, "l2cap: read failed")
	}
}

// Write sends buf over the connection. A write deadline is not applied:
// unlike reads, writes are not expected to block indefinitely under normal
// operation, and the request pipeline's own timeouts bound how long a
// caller waits for a reply.
func (t *StreamTransport) Write(buf []byte) (int, error) {
	n, err := t.conn.Write(buf)
	if err != nil {
		return n, errors.Wrap(err, "l2cap: write failed")
	}
	return n, nil
}

// Close is idempotent: calling it more than once, or concurrently with a
// blocked Read, is safe and only the first call's error (if any) is
// returned.
func (t *StreamTransport) Close() error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return nil
	}
	t.open = false
	t.mu.Unlock()

	select {
	case <-t.closedCh:
	default:
		close(t.closedCh)
	}
	return t.conn.Close()
}
