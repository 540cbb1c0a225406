package statuslog

import (
	"sync"

	"github.com/majordodo/corebroker/pkg/types"
)

type logEntry struct {
	seq  uint64
	edit types.Edit
}

// MemoryLog is a single-process, non-durable Log. It always starts
// writable (as if it had already won an uncontested election), which
// makes it a convenient test double for the replication driver and
// lifecycle controller, and a workable single-node demo backend for
// cmd/brokerd when no Raft peers are configured.
//
// MemoryLog never calls FollowTheLeader's apply callback on its own: a
// single MemoryLog instance has no followers. It exists to exercise the
// leader append path, recovery-from-snapshot, and checkpointing; cluster
// convergence is exercised against RaftLog instead.
type MemoryLog struct {
	mu       sync.Mutex
	cond     *sync.Cond
	entries  []logEntry
	nextSeq  uint64
	snapshot types.Snapshot
	writable bool
	closed   bool

	// unavailable, while set via SetUnavailable, makes every
	// LogStatusEdit/StartWriting call fail with ErrLogUnavailable until it
	// is cleared again. Test hook only.
	unavailable bool
}

// NewMemoryLog returns a MemoryLog ready to accept appends.
func NewMemoryLog() *MemoryLog {
	l := &MemoryLog{writable: true}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// NewMemoryFollowerLog returns a MemoryLog that starts as a non-writable
// follower, for exercising FollowTheLeader and StartWriting.
func NewMemoryFollowerLog() *MemoryLog {
	l := &MemoryLog{writable: false}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// SetUnavailable sets the availability every later mutating call
// observes, until it is called again.
func (m *MemoryLog) SetUnavailable(unavailable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = unavailable
}

func (m *MemoryLog) LogStatusEdit(edit types.Edit) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.writable || m.unavailable {
		return 0, ErrLogUnavailable
	}

	m.nextSeq++
	seq := m.nextSeq
	m.entries = append(m.entries, logEntry{seq: seq, edit: edit})
	return seq, nil
}

// FollowTheLeader blocks until this replica becomes writable (elected
// leader) or the log is closed. MemoryLog has no remote leader to
// stream edits from; it exists so callers written against the Log
// interface can treat MemoryLog uniformly with RaftLog, and so tests can
// exercise StartWriting unblocking a waiting follower loop.
func (m *MemoryLog) FollowTheLeader(fromSeq uint64, apply ApplyFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for !m.closed && !m.writable {
		m.cond.Wait()
	}
	return nil
}

func (m *MemoryLog) IsLeader() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writable && !m.closed
}

func (m *MemoryLog) IsWritable() bool {
	return m.IsLeader()
}

func (m *MemoryLog) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MemoryLog) StartWriting() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrLogUnavailable
	}
	m.writable = true
	m.cond.Broadcast()
	return nil
}

// WaitWhileLeader blocks while this MemoryLog is writable, returning as
// soon as a test calls StepDown or the log is closed. A single MemoryLog instance never loses
// leadership on its own.
func (m *MemoryLog) WaitWhileLeader() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.writable && !m.closed {
		m.cond.Wait()
	}
}

// StepDown drops this MemoryLog back into the non-writable follower
// state, waking anyone parked in WaitWhileLeader; a later
// FollowTheLeader call blocks until the next StartWriting or Close. Test hook only — RaftLog loses leadership on its own
// via Raft's leadership notification channel.
func (m *MemoryLog) StepDown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writable = false
	m.cond.Broadcast()
}

func (m *MemoryLog) LoadBrokerStatusSnapshot() (types.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot, nil
}

func (m *MemoryLog) Recovery(fromSeq uint64, apply ApplyFunc) error {
	m.mu.Lock()
	entries := make([]logEntry, len(m.entries))
	copy(entries, m.entries)
	m.mu.Unlock()

	for _, e := range entries {
		if e.seq > fromSeq {
			apply(e.seq, e.edit)
		}
	}
	return nil
}

func (m *MemoryLog) Checkpoint(snapshot types.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snapshot

	// Purging memory never rewrites the log; a checkpoint does truncate
	// the log's own durable tail, though, since it is no longer needed
	// for recovery below the snapshot's sequence.
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.seq > snapshot.LastLogSequenceNumber {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

func (m *MemoryLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
	return nil
}
