package lifecycle

import (
	"fmt"
	"strconv"
	"time"

	"github.com/majordodo/corebroker/pkg/log"
	"github.com/majordodo/corebroker/pkg/metrics"
	"github.com/majordodo/corebroker/pkg/replication"
	"github.com/majordodo/corebroker/pkg/statusstore"
	"github.com/majordodo/corebroker/pkg/types"
	"github.com/rs/zerolog"
)

// Config tunes the background PurgeTasks cycle.
type Config struct {
	// MaxExpiredPerCycle caps how many WAITING-past-deadline tasks a
	// single PurgeTasks call will expire. Default 1000.
	MaxExpiredPerCycle int

	// Retention is how long a FINISHED or ERROR task is kept in memory
	// (counted from its createdTimestamp) before PurgeTasks drops it.
	// Default 24h.
	Retention time.Duration
}

// Controller is the broker's task lifecycle controller.
type Controller struct {
	driver *replication.Driver
	store  *statusstore.Store
	queue  ReadyQueue
	logger zerolog.Logger

	maxExpiredPerCycle int
	retentionMillis    int64

	now func() int64
}

// New builds a Controller reading the real wall clock.
func New(driver *replication.Driver, store *statusstore.Store, queue ReadyQueue, cfg Config) *Controller {
	maxExpired := cfg.MaxExpiredPerCycle
	if maxExpired <= 0 {
		maxExpired = 1000
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	return &Controller{
		driver:             driver,
		store:              store,
		queue:              queue,
		logger:             log.WithComponent("lifecycle"),
		maxExpiredPerCycle: maxExpired,
		retentionMillis:    retention.Milliseconds(),
		now:                func() int64 { return time.Now().UnixMilli() },
	}
}

func groupOf(taskType int32) string {
	return strconv.FormatInt(int64(taskType), 10)
}

// AddTask mints a task id, submits an ADD_TASK edit, and — only if the
// submission was not a silently dropped slot duplicate — offers the new
// id to the ready queue.
func (c *Controller) AddTask(taskType int32, userID, parameter string, maxAttempts int32, deadline int64, slot string) (int64, error) {
	taskID := c.store.NextTaskID()

	newTaskID, err := c.driver.ApplyModification(types.Edit{
		Kind:              types.AddTask,
		TaskID:            taskID,
		TaskType:          taskType,
		UserID:            userID,
		Parameter:         parameter,
		MaxAttempts:       maxAttempts,
		ExecutionDeadline: deadline,
		Slot:              slot,
		CreatedTimestamp:  c.now(),
	})
	if err != nil {
		return 0, err
	}
	if newTaskID > 0 {
		c.queue.Offer(groupOf(taskType), newTaskID, userID)
		metrics.TasksAddedTotal.Inc()
	}
	return newTaskID, nil
}

// AssignTasksToWorker polls the ready queue for up to max candidates,
// expires any whose deadline has already passed instead of assigning
// them, and assigns the rest to workerID.
func (c *Controller) AssignTasksToWorker(max int, availableSpace int, groups []string, workerID string) ([]int64, error) {
	candidates := c.queue.Poll(max, availableSpace, groups)
	assigned := make([]int64, 0, len(candidates))

	for _, taskID := range candidates {
		view, ok := c.store.GetTask(taskID)
		if !ok {
			continue
		}

		if view.ExecutionDeadline != 0 && view.ExecutionDeadline <= c.now() {
			if _, err := c.driver.ApplyModification(types.Edit{
				Kind:       types.TaskStatusChange,
				TaskID:     taskID,
				TaskStatus: types.TaskError,
				Result:     "deadline_expired",
			}); err != nil {
				return assigned, err
			}
			metrics.TasksExpiredTotal.Inc()
			continue
		}

		if _, err := c.driver.ApplyModification(types.Edit{
			Kind:     types.AssignTaskToWorker,
			TaskID:   taskID,
			WorkerID: workerID,
			Attempt:  view.Attempts + 1,
		}); err != nil {
			return assigned, err
		}
		assigned = append(assigned, taskID)
	}
	return assigned, nil
}

// TaskFinished records a worker-reported terminal or retryable outcome.
// finalStatus must be FINISHED or ERROR; WAITING/RUNNING are caller
// misuse and are rejected without touching the store.
func (c *Controller) TaskFinished(workerID string, taskID int64, finalStatus types.TaskStatus, result string) error {
	switch finalStatus {
	case types.TaskFinished:
		_, err := c.driver.ApplyModification(types.Edit{
			Kind:       types.TaskStatusChange,
			TaskID:     taskID,
			WorkerID:   workerID,
			TaskStatus: types.TaskFinished,
			Result:     result,
		})
		return err

	case types.TaskError:
		view, ok := c.store.GetTask(taskID)

		exhausted := ok && view.MaxAttempts > 0 && view.Attempts >= view.MaxAttempts
		pastDeadline := ok && view.ExecutionDeadline != 0 && view.ExecutionDeadline <= c.now()

		if exhausted || pastDeadline {
			_, err := c.driver.ApplyModification(types.Edit{
				Kind:       types.TaskStatusChange,
				TaskID:     taskID,
				WorkerID:   workerID,
				TaskStatus: types.TaskError,
				Result:     result,
			})
			return err
		}

		_, err := c.driver.ApplyModification(types.Edit{
			Kind:       types.TaskStatusChange,
			TaskID:     taskID,
			WorkerID:   workerID,
			TaskStatus: types.TaskWaiting,
			Result:     result,
		})
		if err != nil {
			return err
		}
		if ok {
			c.queue.Offer(groupOf(view.Type), taskID, view.UserID)
			metrics.TasksRetriedTotal.Inc()
		}
		return nil

	default:
		return fmt.Errorf("lifecycle: illegal TaskFinished status %s", finalStatus)
	}
}

// TaskNeedsRecoveryDueToWorkerDeath is TaskFinished(workerID, taskID,
// ERROR, "worker <id> died"), the path the worker-death detector uses.
func (c *Controller) TaskNeedsRecoveryDueToWorkerDeath(taskID int64, workerID string) error {
	return c.TaskFinished(workerID, taskID, types.TaskError, fmt.Sprintf("worker %s died", workerID))
}

// WorkerConnected submits a WORKER_CONNECTED edit.
func (c *Controller) WorkerConnected(workerID, location, processID string) error {
	_, err := c.driver.ApplyModification(types.Edit{
		Kind:            types.WorkerConnectedEdit,
		WorkerID:        workerID,
		WorkerLocation:  location,
		WorkerProcessID: processID,
		Timestamp:       c.now(),
	})
	return err
}

// DeclareWorkerDisconnected submits a WORKER_DISCONNECTED edit.
func (c *Controller) DeclareWorkerDisconnected(workerID string) error {
	_, err := c.driver.ApplyModification(types.Edit{
		Kind:      types.WorkerDisconnectedEdit,
		WorkerID:  workerID,
		Timestamp: c.now(),
	})
	return err
}

// DeclareWorkerDead submits a WORKER_DIED edit.
func (c *Controller) DeclareWorkerDead(workerID string) error {
	_, err := c.driver.ApplyModification(types.Edit{
		Kind:      types.WorkerDiedEdit,
		WorkerID:  workerID,
		Timestamp: c.now(),
	})
	return err
}

// PurgeTasks runs one background sweep: under the writer lock, it
// collects WAITING tasks past their deadline (capped at
// maxExpiredPerCycle) and drops ERROR/FINISHED tasks past retention from
// memory only — the log is never rewritten, so a recovering replica may
// see them again and purge them again. Expiry edits are emitted after
// the lock is released.
func (c *Controller) PurgeTasks() {
	now := c.now()
	var expired []int64

	c.store.Lock()
	for _, t := range c.store.TasksForPurge() {
		switch {
		case t.Status == types.TaskWaiting && t.ExecutionDeadline != 0 && t.ExecutionDeadline <= now:
			if len(expired) < c.maxExpiredPerCycle {
				expired = append(expired, t.ID)
			}
		case (t.Status == types.TaskError || t.Status == types.TaskFinished) && now-t.CreatedTimestamp > c.retentionMillis:
			c.store.DeleteTask(t.ID)
		}
	}
	c.store.Unlock()

	for _, taskID := range expired {
		if _, err := c.driver.ApplyModification(types.Edit{
			Kind:       types.TaskStatusChange,
			TaskID:     taskID,
			TaskStatus: types.TaskError,
			Result:     "deadline_expired",
		}); err != nil {
			c.logger.Error().Err(err).Int64("task_id", taskID).Msg("purge: failed to expire task")
			continue
		}
		metrics.TasksExpiredTotal.Inc()
		c.queue.Remove(taskID)
	}
}

// Checkpoint builds a snapshot under the reader lock and hands it to the
// replication driver for durable storage.
func (c *Controller) Checkpoint() error {
	return c.driver.Checkpoint(c.store.Snapshot())
}
