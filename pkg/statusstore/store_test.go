package statusstore

import (
	"testing"

	"github.com/majordodo/corebroker/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutTaskVisibleToReaders(t *testing.T) {
	s := New()

	s.Lock()
	s.PutTask(&types.Task{ID: 1, Status: types.TaskWaiting})
	s.AdvanceMaxTaskID(1)
	s.SetLastLogSequenceNumber(1)
	s.Unlock()

	view, ok := s.GetTask(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), view.ID)
	assert.Equal(t, types.TaskWaiting, view.Status)
	assert.EqualValues(t, 1, s.MaxTaskID())
	assert.EqualValues(t, 1, s.LastLogSequenceNumber())
}

func TestViewIsACopyNotALiveReference(t *testing.T) {
	s := New()
	s.Lock()
	s.PutTask(&types.Task{ID: 1, Status: types.TaskWaiting})
	s.Unlock()

	view, _ := s.GetTask(1)
	view.Status = types.TaskFinished

	again, _ := s.GetTask(1)
	assert.Equal(t, types.TaskWaiting, again.Status, "mutating a TaskView must not affect the store")
}

func TestAdvanceMaxTaskIDNeverDecreases(t *testing.T) {
	s := New()
	s.Lock()
	s.AdvanceMaxTaskID(10)
	s.AdvanceMaxTaskID(3)
	s.Unlock()
	assert.EqualValues(t, 10, s.MaxTaskID())
}

func TestNextTaskIDMonotonic(t *testing.T) {
	s := New()
	a := s.NextTaskID()
	b := s.NextTaskID()
	assert.Less(t, a, b)
}

func TestSetNextTaskIDRebasesAfterRecovery(t *testing.T) {
	s := New()
	s.SetNextTaskID(41)
	assert.EqualValues(t, 42, s.NextTaskID())
}

func TestResetInstallsSnapshotVerbatim(t *testing.T) {
	s := New()
	s.Lock()
	s.Reset(5, 9,
		[]*types.Task{{ID: 1}, {ID: 5}},
		[]*types.Worker{{ID: "w1"}},
	)
	s.Unlock()

	assert.Len(t, s.GetAllTasks(), 2)
	assert.Len(t, s.GetAllWorkers(), 1)
	assert.EqualValues(t, 5, s.MaxTaskID())
	assert.EqualValues(t, 9, s.LastLogSequenceNumber())
}

func TestStatsCountsByStatus(t *testing.T) {
	s := New()
	s.Lock()
	s.PutTask(&types.Task{ID: 1, Status: types.TaskWaiting})
	s.PutTask(&types.Task{ID: 2, Status: types.TaskRunning})
	s.PutTask(&types.Task{ID: 3, Status: types.TaskRunning})
	s.PutWorker(&types.Worker{ID: "w1", Status: types.WorkerConnected})
	s.Unlock()

	stats := s.Stats()
	assert.Equal(t, 1, stats.TasksByStatus[types.TaskWaiting])
	assert.Equal(t, 2, stats.TasksByStatus[types.TaskRunning])
	assert.Equal(t, 1, stats.WorkersByStatus[types.WorkerConnected])
}
