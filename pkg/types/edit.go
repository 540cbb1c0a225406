package types

// EditKind identifies the variant of an Edit. It is the tag the edit
// applier switches on.
type EditKind int

const (
	AddTask EditKind = iota
	AssignTaskToWorker
	TaskStatusChange
	WorkerConnectedEdit
	WorkerDisconnectedEdit
	WorkerDiedEdit
)

func (k EditKind) String() string {
	switch k {
	case AddTask:
		return "ADD_TASK"
	case AssignTaskToWorker:
		return "ASSIGN_TASK_TO_WORKER"
	case TaskStatusChange:
		return "TASK_STATUS_CHANGE"
	case WorkerConnectedEdit:
		return "WORKER_CONNECTED"
	case WorkerDisconnectedEdit:
		return "WORKER_DISCONNECTED"
	case WorkerDiedEdit:
		return "WORKER_DIED"
	default:
		return "UNKNOWN_EDIT"
	}
}

// Edit is the single, typed unit of replication: the wire/disk schema the
// log persists and that every replica applies in sequence-number order.
// Only the fields relevant to Kind are populated; the rest are zero.
type Edit struct {
	Kind EditKind

	// ADD_TASK. CreatedTimestamp is stamped at edit-construction time on
	// the leader (the only wall-clock read in the whole apply path) and
	// carried in the edit so every replica applies the same value.
	TaskID            int64
	TaskType          int32
	Parameter         string
	UserID            string
	MaxAttempts       int32
	ExecutionDeadline int64
	Slot              string
	CreatedTimestamp  int64

	// ASSIGN_TASK_TO_WORKER / TASK_STATUS_CHANGE / WORKER_*
	WorkerID          string
	Attempt           int32
	TaskStatus        TaskStatus
	Result            string
	WorkerProcessID   string
	WorkerLocation    string
	Timestamp         int64
}
