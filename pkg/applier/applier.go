package applier

import (
	"github.com/majordodo/corebroker/pkg/log"
	"github.com/majordodo/corebroker/pkg/slotarbiter"
	"github.com/majordodo/corebroker/pkg/statusstore"
	"github.com/majordodo/corebroker/pkg/types"
	"github.com/rs/zerolog"
)

// NoTaskID is the sentinel newTaskId returned for every edit kind except
// ADD_TASK.
const NoTaskID int64 = -1

// AbortFunc is invoked when Apply detects a programmer/invariant
// violation. The default aborts the process; tests substitute a
// function that records the call instead.
type AbortFunc func(reason string)

// Applier applies edits to a statusstore.Store and keeps the
// slotarbiter.Arbiter synchronized with terminal transitions.
type Applier struct {
	store  *statusstore.Store
	slots  *slotarbiter.Arbiter
	logger zerolog.Logger
	abort  AbortFunc
}

// New returns an Applier that aborts the process on invariant violations.
func New(store *statusstore.Store, slots *slotarbiter.Arbiter) *Applier {
	return &Applier{
		store:  store,
		slots:  slots,
		logger: log.WithComponent("applier"),
		abort:  func(reason string) { log.Logger.Fatal().Msg(reason) },
	}
}

// NewWithAbort is New with an injectable abort function, for tests that
// need to observe a process-abort condition without exiting.
func NewWithAbort(store *statusstore.Store, slots *slotarbiter.Arbiter, abort AbortFunc) *Applier {
	a := New(store, slots)
	a.abort = abort
	return a
}

// Apply dispatches edit and mutates the store. The caller must already
// hold the store's writer lock; Apply does not lock or unlock it. seq
// must be the next sequence number to apply; it is recorded before
// dispatch so a crash mid-apply still leaves lastLogSequenceNumber
// consistent with "seq was at least attempted".
//
// Returns the created task id for ADD_TASK, or NoTaskID otherwise.
func (a *Applier) Apply(seq uint64, edit types.Edit) int64 {
	a.store.SetLastLogSequenceNumber(seq)

	switch edit.Kind {
	case types.AddTask:
		return a.applyAddTask(edit)
	case types.AssignTaskToWorker:
		a.applyAssignTaskToWorker(edit)
		return NoTaskID
	case types.TaskStatusChange:
		a.applyTaskStatusChange(edit)
		return NoTaskID
	case types.WorkerConnectedEdit:
		a.upsertWorker(edit, types.WorkerConnected)
		return NoTaskID
	case types.WorkerDisconnectedEdit:
		a.upsertWorker(edit, types.WorkerDisconnected)
		return NoTaskID
	case types.WorkerDiedEdit:
		a.upsertWorker(edit, types.WorkerDead)
		return NoTaskID
	default:
		a.abort("applier: unknown edit kind " + edit.Kind.String())
		return NoTaskID
	}
}

func (a *Applier) applyAddTask(edit types.Edit) int64 {
	t := &types.Task{
		ID:                edit.TaskID,
		Type:              edit.TaskType,
		UserID:            edit.UserID,
		Parameter:         edit.Parameter,
		CreatedTimestamp:  edit.CreatedTimestamp,
		ExecutionDeadline: edit.ExecutionDeadline,
		MaxAttempts:       edit.MaxAttempts,
		Attempts:          0,
		Slot:              edit.Slot,
		Status:            types.TaskWaiting,
	}
	a.store.PutTask(t)
	a.store.AdvanceMaxTaskID(edit.TaskID)

	if edit.Slot != "" {
		// Benign no-op on replay/follower apply: the leader already
		// reserved the slot before appending; a follower or a recovery
		// replay simply re-establishes the same reservation.
		a.slots.AssignSlot(edit.Slot)
	}
	return edit.TaskID
}

func (a *Applier) applyAssignTaskToWorker(edit types.Edit) {
	t := a.store.TaskForMutation(edit.TaskID)
	if t == nil {
		a.abort("applier: ASSIGN_TASK_TO_WORKER for unknown task")
		return
	}
	t.Status = types.TaskRunning
	t.WorkerID = edit.WorkerID
	t.Attempts = edit.Attempt
}

func (a *Applier) applyTaskStatusChange(edit types.Edit) {
	t := a.store.TaskForMutation(edit.TaskID)
	if t == nil {
		a.abort("applier: TASK_STATUS_CHANGE for unknown task")
		return
	}
	if edit.WorkerID != "" && edit.WorkerID != t.WorkerID {
		a.abort("applier: TASK_STATUS_CHANGE workerId mismatch")
		return
	}
	t.Status = edit.TaskStatus
	t.Result = edit.Result

	if t.Status.Terminal() && t.Slot != "" {
		a.slots.ReleaseSlot(t.Slot)
	}
}

func (a *Applier) upsertWorker(edit types.Edit, status types.WorkerStatus) {
	w := a.store.WorkerForMutation(edit.WorkerID)
	if w == nil {
		w = &types.Worker{ID: edit.WorkerID}
	}
	w.Status = status
	if status == types.WorkerConnected {
		w.Location = edit.WorkerLocation
		w.ProcessID = edit.WorkerProcessID
		w.LastConnectionTs = edit.Timestamp
	}
	a.store.PutWorker(w)
}
