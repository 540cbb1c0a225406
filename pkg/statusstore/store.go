package statusstore

import (
	"sync"
	"sync/atomic"

	"github.com/majordodo/corebroker/pkg/types"
)

// Store is the authoritative in-memory map of tasks and workers. The zero
// value is not usable; construct with New.
type Store struct {
	mu sync.RWMutex

	tasks   map[int64]*types.Task
	workers map[string]*types.Worker

	maxTaskID             int64
	lastLogSequenceNumber uint64
	checkpointsCount      int64

	nextTaskID atomic.Int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tasks:   make(map[int64]*types.Task),
		workers: make(map[string]*types.Worker),
	}
}

// Lock acquires the writer lock. Only the edit applier and the
// recovery/purge/start-writing paths may hold it.
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the writer lock.
func (s *Store) Unlock() { s.mu.Unlock() }

// RLock acquires the reader lock. Readers never block each other.
func (s *Store) RLock() { s.mu.RLock() }

// RUnlock releases the reader lock.
func (s *Store) RUnlock() { s.mu.RUnlock() }

// --- writer-lock-held accessors (applier / recovery / purge internals) ---

// TaskForMutation returns the live Task record for id, or nil if absent.
// The caller must hold the writer lock; the returned pointer must not
// escape past Unlock.
func (s *Store) TaskForMutation(id int64) *types.Task {
	return s.tasks[id]
}

// PutTask inserts or replaces the live Task record for t.ID. The caller
// must hold the writer lock.
func (s *Store) PutTask(t *types.Task) {
	s.tasks[t.ID] = t
}

// DeleteTask removes id from the map (used by purge). The caller must
// hold the writer lock.
func (s *Store) DeleteTask(id int64) {
	delete(s.tasks, id)
}

// TasksForPurge returns the live Task pointers for PurgeTasks to inspect.
// The caller must hold the writer lock and must not retain the pointers
// past Unlock.
func (s *Store) TasksForPurge() []*types.Task {
	out := make([]*types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

// WorkerForMutation returns the live Worker record for id, or nil if
// absent. The caller must hold the writer lock.
func (s *Store) WorkerForMutation(id string) *types.Worker {
	return s.workers[id]
}

// PutWorker inserts or replaces the live Worker record for w.ID. The
// caller must hold the writer lock.
func (s *Store) PutWorker(w *types.Worker) {
	s.workers[w.ID] = w
}

// SetLastLogSequenceNumber records the sequence number just applied. The
// caller must hold the writer lock.
func (s *Store) SetLastLogSequenceNumber(seq uint64) {
	s.lastLogSequenceNumber = seq
}

// AdvanceMaxTaskID sets maxTaskID to id if id is greater than the current
// value. The caller must hold the writer lock.
func (s *Store) AdvanceMaxTaskID(id int64) {
	if id > s.maxTaskID {
		s.maxTaskID = id
	}
}

// SetMaxTaskID sets maxTaskID unconditionally, unlike AdvanceMaxTaskID.
// The caller must hold the writer lock.
func (s *Store) SetMaxTaskID(id int64) {
	s.maxTaskID = id
}

// IncrementCheckpointsCount bumps the checkpoint counter. It takes the
// writer lock itself, so the caller must not already hold it.
func (s *Store) IncrementCheckpointsCount() {
	s.mu.Lock()
	s.checkpointsCount++
	s.mu.Unlock()
}

// Reset clears the store and installs snapshot contents verbatim. Used
// only by recovery, before any edits are replayed. The caller must hold
// the writer lock.
func (s *Store) Reset(maxTaskID int64, lastSeq uint64, tasks []*types.Task, workers []*types.Worker) {
	s.tasks = make(map[int64]*types.Task, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	s.workers = make(map[string]*types.Worker, len(workers))
	for _, w := range workers {
		s.workers[w.ID] = w
	}
	s.maxTaskID = maxTaskID
	s.lastLogSequenceNumber = lastSeq
}

// --- nextTaskID: atomic, readable without the status lock ---

// NextTaskID atomically increments and returns the next task id to mint.
func (s *Store) NextTaskID() int64 {
	return s.nextTaskID.Add(1)
}

// SetNextTaskID rebases the generator so the next call to NextTaskID
// returns n+1. Used after recovery: nextTaskID = maxTaskID + 1.
func (s *Store) SetNextTaskID(n int64) {
	s.nextTaskID.Store(n)
}
