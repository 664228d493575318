package session

import "time"

// Config tunes the timing and resource limits of a Session. The zero value
// is not valid; use DefaultConfig and override individual fields, then call
// Normalize before passing it to New.
type Config struct {
	// ReadReplyTimeout bounds how long a read/read-blob request waits for
	// its response before the call fails with ErrTimeout.
	ReadReplyTimeout time.Duration

	// WriteReplyTimeout bounds how long a write request waits for its
	// response, and how long an outgoing indication waits for its
	// confirmation.
	WriteReplyTimeout time.Duration

	// InitialReplyTimeout bounds the MTU exchange that opens a session,
	// which is allowed longer than steady-state requests since it may
	// race the peer's own connection setup.
	InitialReplyTimeout time.Duration

	// PDURingCapacity bounds the reader loop's internal queue of decoded
	// PDUs awaiting dispatch to the transaction pipeline or listeners.
	PDURingCapacity int

	// DebugData gates whether DebugSnapshot includes the discovered
	// services, since those can reveal application details.
	DebugData bool
}

const (
	defaultReadReplyTimeout    = 550 * time.Millisecond
	defaultWriteReplyTimeout   = 550 * time.Millisecond
	defaultInitialReplyTimeout = 2500 * time.Millisecond
	defaultPDURingCapacity     = 128

	minReadReplyTimeout    = 250 * time.Millisecond
	minWriteReplyTimeout   = 250 * time.Millisecond
	minInitialReplyTimeout = 2000 * time.Millisecond

	minPDURingCapacity = 64
	maxPDURingCapacity = 1024
)

// DefaultConfig returns the recommended starting point for a Session.
func DefaultConfig() Config {
	return Config{
		ReadReplyTimeout:    defaultReadReplyTimeout,
		WriteReplyTimeout:   defaultWriteReplyTimeout,
		InitialReplyTimeout: defaultInitialReplyTimeout,
		PDURingCapacity:     defaultPDURingCapacity,
		DebugData:           false,
	}
}

// Normalize clamps every field to its allowed range in place, so a caller
// who loaded Config from an external source cannot hand New a value that
// would make the transaction pipeline or the ring queue misbehave.
func (c *Config) Normalize() {
	if c.ReadReplyTimeout < minReadReplyTimeout {
		c.ReadReplyTimeout = minReadReplyTimeout
	}
	if c.WriteReplyTimeout < minWriteReplyTimeout {
		c.WriteReplyTimeout = minWriteReplyTimeout
	}
	if c.InitialReplyTimeout < minInitialReplyTimeout {
		c.InitialReplyTimeout = minInitialReplyTimeout
	}
	if c.PDURingCapacity < minPDURingCapacity {
		c.PDURingCapacity = minPDURingCapacity
	}
	if c.PDURingCapacity > maxPDURingCapacity {
		c.PDURingCapacity = maxPDURingCapacity
	}
}
