package statusstore

import "github.com/majordodo/corebroker/pkg/types"

// GetTask returns a structural copy of the task with the given id.
func (s *Store) GetTask(id int64) (types.TaskView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return types.TaskView{}, false
	}
	return t.View(), true
}

// GetAllTasks returns a structural copy of every known task.
func (s *Store) GetAllTasks() []types.TaskView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.TaskView, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.View())
	}
	return out
}

// GetAllWorkers returns a structural copy of every known worker.
func (s *Store) GetAllWorkers() []types.WorkerView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.WorkerView, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w.View())
	}
	return out
}

// GetWorkerStatus returns a structural copy of the named worker.
func (s *Store) GetWorkerStatus(id string) (types.WorkerView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workers[id]
	if !ok {
		return types.WorkerView{}, false
	}
	return w.View(), true
}

// GetTasksAtBoot is GetAllTasks under another name: a snapshot used once
// at startup to rehydrate the external ready-queue. Callers must treat
// the result as an immutable view valid only at call time.
func (s *Store) GetTasksAtBoot() []types.TaskView { return s.GetAllTasks() }

// GetWorkersAtBoot is GetAllWorkers under another name, for symmetry with
// GetTasksAtBoot.
func (s *Store) GetWorkersAtBoot() []types.WorkerView { return s.GetAllWorkers() }

// MaxTaskID returns the highest task id ever produced.
func (s *Store) MaxTaskID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxTaskID
}

// LastLogSequenceNumber returns the highest sequence number applied.
func (s *Store) LastLogSequenceNumber() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLogSequenceNumber
}

// CheckpointsCount returns the number of checkpoints taken so far.
func (s *Store) CheckpointsCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpointsCount
}

// Snapshot builds a self-contained record of the current state, taken
// under the reader lock, for durable checkpointing.
func (s *Store) Snapshot() types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t.Clone())
	}
	workers := make([]*types.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w.Clone())
	}
	return types.Snapshot{
		MaxTaskID:             s.maxTaskID,
		LastLogSequenceNumber: s.lastLogSequenceNumber,
		Tasks:                 tasks,
		Workers:               workers,
	}
}

// Stats is a derived, read-only view of the store used by the metrics
// collector.
type Stats struct {
	TasksByStatus   map[types.TaskStatus]int
	WorkersByStatus map[types.WorkerStatus]int
	LastLogSeq      uint64
	Checkpoints     int64
}

// Stats computes a Stats snapshot under the reader lock.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TasksByStatus:   make(map[types.TaskStatus]int, 4),
		WorkersByStatus: make(map[types.WorkerStatus]int, 3),
		LastLogSeq:      s.lastLogSequenceNumber,
		Checkpoints:     s.checkpointsCount,
	}
	for _, t := range s.tasks {
		st.TasksByStatus[t.Status]++
	}
	for _, w := range s.workers {
		st.WorkersByStatus[w.Status]++
	}
	return st
}
