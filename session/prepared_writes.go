package session

import (
	"fmt"
	"sync"

	"github.com/user/gattwire/att"
)

// preparedWriteState is the Empty/Staged state machine a server-side
// connection's prepare-write queue moves through: a PREPARE_WRITE_REQ
// stages an entry (Empty -> Staged), and an EXECUTE_WRITE_REQ drains the
// queue back to Empty, either committing every staged entry to the
// database (ExecuteWriteCommit) or discarding them (ExecuteWriteCancel).
type preparedWriteState int

const (
	preparedWriteEmpty preparedWriteState = iota
	preparedWriteStaged
)

type stagedWrite struct {
	handle uint16
	offset uint16
	value  []byte
}

// preparedWriteQueue is the server-side staging area for long writes. It is
// per-session: each session gets its own queue, and closing the session
// discards whatever was staged without ever touching the database.
type preparedWriteQueue struct {
	mu      sync.Mutex
	state   preparedWriteState
	entries []stagedWrite
}

func newPreparedWriteQueue() *preparedWriteQueue {
	return &preparedWriteQueue{}
}

const maxPreparedWriteEntries = 256

// Stage appends a prepare-write entry. Returns *att.Error{ErrPrepareQueueFull}
// once the queue has accumulated more entries than a well-behaved client
// should ever need.
func (q *preparedWriteQueue) Stage(handle, offset uint16, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= maxPreparedWriteEntries {
		return att.NewError(att.ErrPrepareQueueFull, att.OpPrepareWriteRequest, handle)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	q.entries = append(q.entries, stagedWrite{handle: handle, offset: offset, value: cp})
	q.state = preparedWriteStaged
	return nil
}

// Entries returns a copy of the staged entries, in arrival order, for a
// PREPARE_WRITE queue-contents debug view or for the execute step.
func (q *preparedWriteQueue) Entries() []stagedWrite {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]stagedWrite, len(q.entries))
	copy(out, q.entries)
	return out
}

// Reset drops every staged entry and returns to Empty, without writing
// anything to the database. Used for ExecuteWriteCancel and for session
// teardown.
func (q *preparedWriteQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
	q.state = preparedWriteEmpty
}

// Commit applies every staged entry, in arrival order, by calling apply with
// each entry's (handle, offset, value). apply is expected to splice value
// into the attribute's current value at offset, applying the same capacity
// and permission rules a plain write would. It always resets the queue
// afterward, whether or not the writes themselves succeeded, because a
// partially-applied long write cannot be retried by re-executing. Commit
// aborts at the first entry apply rejects, leaving every entry up to that
// point already applied: a well-behaved client only reaches this path after
// staging entries it expects to succeed in order.
func (q *preparedWriteQueue) Commit(apply func(handle, offset uint16, value []byte) *att.Error) error {
	q.mu.Lock()
	entries := make([]stagedWrite, len(q.entries))
	copy(entries, q.entries)
	q.entries = nil
	q.state = preparedWriteEmpty
	q.mu.Unlock()

	for _, e := range entries {
		if aerr := apply(e.handle, e.offset, e.value); aerr != nil {
			return aerr
		}
	}
	return nil
}

func (q *preparedWriteQueue) String() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return fmt.Sprintf("preparedWriteQueue{state=%d, entries=%d}", q.state, len(q.entries))
}
