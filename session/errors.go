package session

import "github.com/pkg/errors"

// Sentinel errors a caller can match with errors.Is. Concrete failures are
// wrapped around these with github.com/pkg/errors so the taxonomy survives
// Wrap/Wrapf while the causal chain (a timeout caused by a closed socket,
// say) stays in the error text for logs.
var (
	// ErrNotConnected is returned by any operation attempted before the
	// session reaches Connected, or after it leaves it.
	ErrNotConnected = errors.New("session: not connected")

	// ErrInvalidArgument is returned for caller errors: an unknown
	// characteristic UUID, a zero handle, an out-of-range offset.
	ErrInvalidArgument = errors.New("session: invalid argument")

	// ErrTimeout is returned when a request's reply does not arrive
	// within its configured deadline.
	ErrTimeout = errors.New("session: request timed out")

	// ErrIoError wraps a transport-level read or write failure.
	ErrIoError = errors.New("session: transport i/o error")

	// ErrUnexpectedReply is returned when a response PDU does not match
	// the opcode or handle of the request it claims to answer.
	ErrUnexpectedReply = errors.New("session: unexpected reply")

	// ErrMalformedPDU is returned when a received frame could not be
	// decoded into any known ATT PDU shape.
	ErrMalformedPDU = errors.New("session: malformed PDU")

	// ErrNotAvailable is returned by DeviceHandle accessors after the
	// device-side session has been closed and its handle cleared.
	ErrNotAvailable = errors.New("session: device handle no longer available")
)

// wrap attaches context to one of the sentinel errors above while keeping
// errors.Is(result, sentinel) true.
func wrap(sentinel error, format string, args ...interface{}) error {
	return errors.Wrapf(sentinel, format, args...)
}
