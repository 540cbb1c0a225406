package types

import "strconv"

// TaskStatus is the lifecycle state of a Task.
type TaskStatus int

const (
	TaskWaiting TaskStatus = iota
	TaskRunning
	TaskFinished
	TaskError
)

// String renders the numeric status for logs; clients are expected to
// consume the numeric code directly.
func (s TaskStatus) String() string {
	switch s {
	case TaskWaiting:
		return "WAITING"
	case TaskRunning:
		return "RUNNING"
	case TaskFinished:
		return "FINISHED"
	case TaskError:
		return "ERROR"
	default:
		return "?" + strconv.Itoa(int(s))
	}
}

// Terminal reports whether s is a terminal status (FINISHED or ERROR).
func (s TaskStatus) Terminal() bool {
	return s == TaskFinished || s == TaskError
}

// Task is a single unit of work tracked by the status core.
//
// Task is mutated exclusively by the edit applier; every other reader
// receives a TaskView copy instead.
type Task struct {
	ID                int64
	Type              int32
	UserID            string
	Parameter         string
	Result            string
	CreatedTimestamp  int64 // ms since epoch
	ExecutionDeadline int64 // ms since epoch; 0 means "none"
	MaxAttempts       int32 // 0 means "unlimited"
	Attempts          int32
	WorkerID          string // empty means unassigned
	Slot              string // empty means no slot
	Status            TaskStatus
}

// TaskView is a structural, read-only copy of a Task handed to callers
// outside the status store. It is a distinct type from Task so that a
// caller can never mistake it for a live, lock-protected record.
type TaskView struct {
	ID                int64
	Type              int32
	UserID            string
	Parameter         string
	Result            string
	CreatedTimestamp  int64
	ExecutionDeadline int64
	MaxAttempts       int32
	Attempts          int32
	WorkerID          string
	Slot              string
	Status            TaskStatus
}

// View copies t into a TaskView.
func (t *Task) View() TaskView {
	return TaskView{
		ID:                t.ID,
		Type:              t.Type,
		UserID:            t.UserID,
		Parameter:         t.Parameter,
		Result:            t.Result,
		CreatedTimestamp:  t.CreatedTimestamp,
		ExecutionDeadline: t.ExecutionDeadline,
		MaxAttempts:       t.MaxAttempts,
		Attempts:          t.Attempts,
		WorkerID:          t.WorkerID,
		Slot:              t.Slot,
		Status:            t.Status,
	}
}

// Clone returns a deep (for this flat struct, shallow-is-deep) copy of t,
// safe to store independently of the original.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
