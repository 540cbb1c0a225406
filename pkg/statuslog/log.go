package statuslog

import (
	"errors"

	"github.com/majordodo/corebroker/pkg/types"
)

// ErrLogUnavailable is returned when the log cannot durably accept or
// serve an edit: I/O error, loss of leadership, or quorum loss.
var ErrLogUnavailable = errors.New("statuslog: log unavailable")

// ApplyFunc is the push callback the log invokes once per edit, in
// strictly increasing seq order, during FollowTheLeader and Recovery.
type ApplyFunc func(seq uint64, edit types.Edit)

// Log is the core's external collaborator for ordering and durability.
// The core depends only on this interface; it never assumes a
// particular consensus algorithm or storage engine.
type Log interface {
	// LogStatusEdit persists edit and returns its assigned sequence
	// number. Returns ErrLogUnavailable if the edit cannot be durably
	// accepted.
	LogStatusEdit(edit types.Edit) (seq uint64, err error)

	// FollowTheLeader blocks, streaming edits with sequence > fromSeq to
	// apply, until this replica is elected leader or the log is closed.
	// Returns ErrLogUnavailable if the log fails while following.
	FollowTheLeader(fromSeq uint64, apply ApplyFunc) error

	IsLeader() bool
	IsWritable() bool
	IsClosed() bool

	// StartWriting arms the log for leader appends.
	StartWriting() error

	// WaitWhileLeader blocks while this replica is the current leader,
	// returning as soon as leadership is lost or the log closes. A
	// supervising loop calls this after StartWriting succeeds, so it
	// knows when to fall back into FollowTheLeader.
	WaitWhileLeader()

	// LoadBrokerStatusSnapshot returns the newest durable snapshot, or an
	// empty one if none has ever been taken.
	LoadBrokerStatusSnapshot() (types.Snapshot, error)

	// Recovery replays edits with sequence > fromSeq from durable
	// storage, invoking apply for each in order, then returns once the
	// log tail is reached.
	Recovery(fromSeq uint64, apply ApplyFunc) error

	// Checkpoint atomically records snapshot as the new truncation point.
	Checkpoint(snapshot types.Snapshot) error

	Close() error
}
