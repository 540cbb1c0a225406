package applier

import (
	"testing"

	"github.com/majordodo/corebroker/pkg/slotarbiter"
	"github.com/majordodo/corebroker/pkg/statusstore"
	"github.com/majordodo/corebroker/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApplier(t *testing.T) (*Applier, *statusstore.Store, *slotarbiter.Arbiter, *[]string) {
	t.Helper()
	store := statusstore.New()
	slots := slotarbiter.New()
	var aborts []string
	a := NewWithAbort(store, slots, func(reason string) { aborts = append(aborts, reason) })
	return a, store, slots, &aborts
}

func TestApplyAddTaskCreatesWaitingTask(t *testing.T) {
	a, store, _, aborts := newTestApplier(t)

	store.Lock()
	newID := a.Apply(1, types.Edit{Kind: types.AddTask, TaskID: 1, TaskType: 7, UserID: "u", CreatedTimestamp: 100})
	store.Unlock()

	assert.Equal(t, int64(1), newID)
	assert.Empty(t, *aborts)

	view, ok := store.GetTask(1)
	require.True(t, ok)
	assert.Equal(t, types.TaskWaiting, view.Status)
	assert.EqualValues(t, 0, view.Attempts)
	assert.EqualValues(t, 100, view.CreatedTimestamp)
	assert.EqualValues(t, 1, store.MaxTaskID())
	assert.EqualValues(t, 1, store.LastLogSequenceNumber())
}

func TestApplyAddTaskWithSlotReservesSlot(t *testing.T) {
	a, store, slots, _ := newTestApplier(t)

	store.Lock()
	a.Apply(1, types.Edit{Kind: types.AddTask, TaskID: 1, Slot: "S"})
	store.Unlock()

	assert.True(t, slots.Held("S"))
}

func TestApplyAddTaskReplaySlotIsBenignNoOp(t *testing.T) {
	a, store, slots, aborts := newTestApplier(t)
	slots.AssignSlot("S") // simulate leader's pre-reservation already in place

	store.Lock()
	a.Apply(1, types.Edit{Kind: types.AddTask, TaskID: 1, Slot: "S"})
	store.Unlock()

	assert.True(t, slots.Held("S"))
	assert.Empty(t, *aborts)
}

func TestApplyAssignTaskToWorkerTransitionsToRunning(t *testing.T) {
	a, store, _, _ := newTestApplier(t)
	store.Lock()
	a.Apply(1, types.Edit{Kind: types.AddTask, TaskID: 1})
	a.Apply(2, types.Edit{Kind: types.AssignTaskToWorker, TaskID: 1, WorkerID: "w1", Attempt: 1})
	store.Unlock()

	view, _ := store.GetTask(1)
	assert.Equal(t, types.TaskRunning, view.Status)
	assert.Equal(t, "w1", view.WorkerID)
	assert.EqualValues(t, 1, view.Attempts)
}

func TestApplyAssignTaskToWorkerMissingTaskAborts(t *testing.T) {
	a, store, _, aborts := newTestApplier(t)
	store.Lock()
	a.Apply(1, types.Edit{Kind: types.AssignTaskToWorker, TaskID: 99, WorkerID: "w1"})
	store.Unlock()

	assert.Len(t, *aborts, 1)
}

func TestApplyTaskStatusChangeFinishedReleasesSlot(t *testing.T) {
	a, store, slots, _ := newTestApplier(t)
	store.Lock()
	a.Apply(1, types.Edit{Kind: types.AddTask, TaskID: 1, Slot: "S"})
	a.Apply(2, types.Edit{Kind: types.AssignTaskToWorker, TaskID: 1, WorkerID: "w1", Attempt: 1})
	a.Apply(3, types.Edit{Kind: types.TaskStatusChange, TaskID: 1, WorkerID: "w1", TaskStatus: types.TaskFinished, Result: "ok"})
	store.Unlock()

	view, _ := store.GetTask(1)
	assert.Equal(t, types.TaskFinished, view.Status)
	assert.Equal(t, "ok", view.Result)
	assert.False(t, slots.Held("S"))
}

func TestApplyTaskStatusChangeWorkerMismatchAborts(t *testing.T) {
	a, store, _, aborts := newTestApplier(t)
	store.Lock()
	a.Apply(1, types.Edit{Kind: types.AddTask, TaskID: 1})
	a.Apply(2, types.Edit{Kind: types.AssignTaskToWorker, TaskID: 1, WorkerID: "w1", Attempt: 1})
	a.Apply(3, types.Edit{Kind: types.TaskStatusChange, TaskID: 1, WorkerID: "w2", TaskStatus: types.TaskFinished})
	store.Unlock()

	assert.Len(t, *aborts, 1)
}

func TestApplyTaskStatusChangeMissingTaskAborts(t *testing.T) {
	a, store, _, aborts := newTestApplier(t)
	store.Lock()
	a.Apply(1, types.Edit{Kind: types.TaskStatusChange, TaskID: 42, TaskStatus: types.TaskFinished})
	store.Unlock()
	assert.Len(t, *aborts, 1)
}

func TestApplyUnknownKindAborts(t *testing.T) {
	a, store, _, aborts := newTestApplier(t)
	store.Lock()
	a.Apply(1, types.Edit{Kind: types.EditKind(99)})
	store.Unlock()
	assert.Len(t, *aborts, 1)
}

func TestApplyWorkerConnectedUpsertsWorker(t *testing.T) {
	a, store, _, _ := newTestApplier(t)
	store.Lock()
	a.Apply(1, types.Edit{Kind: types.WorkerConnectedEdit, WorkerID: "w1", WorkerLocation: "10.0.0.1:9000", WorkerProcessID: "p1", Timestamp: 500})
	store.Unlock()

	w, ok := store.GetWorkerStatus("w1")
	require.True(t, ok)
	assert.Equal(t, types.WorkerConnected, w.Status)
	assert.Equal(t, "10.0.0.1:9000", w.Location)
	assert.EqualValues(t, 500, w.LastConnectionTs)
}

func TestApplyWorkerDiedPreservesLocation(t *testing.T) {
	a, store, _, _ := newTestApplier(t)
	store.Lock()
	a.Apply(1, types.Edit{Kind: types.WorkerConnectedEdit, WorkerID: "w1", WorkerLocation: "loc", Timestamp: 1})
	a.Apply(2, types.Edit{Kind: types.WorkerDiedEdit, WorkerID: "w1", Timestamp: 2})
	store.Unlock()

	w, _ := store.GetWorkerStatus("w1")
	assert.Equal(t, types.WorkerDead, w.Status)
	assert.Equal(t, "loc", w.Location, "location is only updated on WORKER_CONNECTED")
}

func TestApplyNoTerminalToRunningViaRetryPath(t *testing.T) {
	// The retry path goes RUNNING -> WAITING via TASK_STATUS_CHANGE;
	// the applier never resurrects a terminal task into RUNNING directly.
	a, store, _, _ := newTestApplier(t)
	store.Lock()
	a.Apply(1, types.Edit{Kind: types.AddTask, TaskID: 1, MaxAttempts: 2})
	a.Apply(2, types.Edit{Kind: types.AssignTaskToWorker, TaskID: 1, WorkerID: "w1", Attempt: 1})
	a.Apply(3, types.Edit{Kind: types.TaskStatusChange, TaskID: 1, WorkerID: "w1", TaskStatus: types.TaskWaiting})
	store.Unlock()

	view, _ := store.GetTask(1)
	assert.Equal(t, types.TaskWaiting, view.Status)
}
