package replication

import (
	"fmt"
	"os"

	"github.com/majordodo/corebroker/pkg/applier"
	"github.com/majordodo/corebroker/pkg/log"
	"github.com/majordodo/corebroker/pkg/metrics"
	"github.com/majordodo/corebroker/pkg/slotarbiter"
	"github.com/majordodo/corebroker/pkg/statuslog"
	"github.com/majordodo/corebroker/pkg/statusstore"
	"github.com/majordodo/corebroker/pkg/types"
	"github.com/rs/zerolog"
)

// AbortFunc is called when the log reports a failure the driver cannot
// recover from. The default aborts the process; tests substitute a
// recording stub via NewWithAbort.
type AbortFunc func(reason string)

// Driver is the broker's replication driver.
type Driver struct {
	log     statuslog.Log
	store   *statusstore.Store
	slots   *slotarbiter.Arbiter
	applier *applier.Applier
	logger  zerolog.Logger
	abort   AbortFunc
}

// New builds a Driver that calls os.Exit(1) on non-recoverable log
// failures, matching the applier's default abort behavior.
func New(l statuslog.Log, store *statusstore.Store, slots *slotarbiter.Arbiter, app *applier.Applier) *Driver {
	return NewWithAbort(l, store, slots, app, func(reason string) {
		log.Error(reason)
		os.Exit(1)
	})
}

// NewWithAbort lets tests observe abort conditions without killing the
// test process.
func NewWithAbort(l statuslog.Log, store *statusstore.Store, slots *slotarbiter.Arbiter, app *applier.Applier, abort AbortFunc) *Driver {
	return &Driver{log: l, store: store, slots: slots, applier: app, abort: abort, logger: log.WithComponent("replication")}
}

// ApplyModification is the leader append path: slot-gate ADD_TASK edits
// that carry a slot, append to the log outside the status lock, then
// apply under it. A slot duplicate is silently dropped — no log entry
// is written and newTaskID is 0 with a nil error.
func (d *Driver) ApplyModification(edit types.Edit) (newTaskID int64, err error) {
	slotReserved := false
	if edit.Kind == types.AddTask && edit.Slot != "" {
		if !d.slots.AssignSlot(edit.Slot) {
			metrics.SlotDuplicatesDroppedTotal.Inc()
			return 0, nil
		}
		slotReserved = true
	}

	seq, err := d.log.LogStatusEdit(edit)
	if err != nil {
		if slotReserved {
			d.slots.ReleaseSlot(edit.Slot)
		}
		return 0, err
	}

	timer := metrics.NewTimer()
	d.store.Lock()
	newTaskID = d.applier.Apply(seq, edit)
	d.store.Unlock()
	timer.ObserveDuration(metrics.ApplyDuration)
	return newTaskID, nil
}

// applyEdit is the ApplyFunc passed to the log for both the follower
// loop and recovery replay.
func (d *Driver) applyEdit(seq uint64, edit types.Edit) {
	timer := metrics.NewTimer()
	d.store.Lock()
	d.applier.Apply(seq, edit)
	d.store.Unlock()
	timer.ObserveDuration(metrics.ApplyDuration)
}

// FollowTheLeader runs the steady-state follower loop: call
// log.FollowTheLeader from the current applied point until this replica
// is elected leader or the log closes. A log failure aborts the process.
func (d *Driver) FollowTheLeader() {
	for !d.log.IsLeader() && !d.log.IsClosed() {
		if err := d.log.FollowTheLeader(d.store.LastLogSequenceNumber(), d.applyEdit); err != nil {
			d.abort(fmt.Sprintf("replication: follower loop failed: %v", err))
			return
		}
	}
}

// Run is the broker-life loop cmd/brokerd starts once per node: follow
// the elected leader's committed edits, and the moment this replica
// wins an election, arm the leader append path and block until
// leadership is lost, then fall back into FollowTheLeader. It returns
// only once the log is closed, so a network partition that later hands
// leadership to a different node is handled by looping rather than by
// a one-shot goroutine.
func (d *Driver) Run() {
	for !d.log.IsClosed() {
		d.FollowTheLeader()
		if d.log.IsClosed() {
			return
		}
		if err := d.StartWriting(); err != nil {
			d.logger.Warn().Err(err).Msg("replication: lost leadership before StartWriting could arm it")
			continue
		}
		d.log.WaitWhileLeader()
	}
}

// Recover loads the newest durable snapshot, installs it verbatim under
// the writer lock, then replays the log tail past the snapshot's
// sequence number. nextTaskId is rebased twice: once right after the
// snapshot install, and again after replay, since the tail may contain
// ADD_TASK edits past the snapshot.
func (d *Driver) Recover() error {
	snapshot, err := d.log.LoadBrokerStatusSnapshot()
	if err != nil {
		return err
	}

	d.store.Lock()
	d.store.Reset(snapshot.MaxTaskID, snapshot.LastLogSequenceNumber, snapshot.Tasks, snapshot.Workers)
	d.store.SetNextTaskID(snapshot.MaxTaskID)
	d.store.Unlock()

	if err := d.log.Recovery(snapshot.LastLogSequenceNumber, d.applyEdit); err != nil {
		return err
	}

	d.store.SetNextTaskID(d.store.MaxTaskID())
	return nil
}

// StartWriting arms the log's leader-append path once this replica has
// won an election.
func (d *Driver) StartWriting() error {
	d.store.Lock()
	defer d.store.Unlock()
	return d.log.StartWriting()
}

// Checkpoint hands snapshot to the log for durable storage and bumps the
// store's checkpoint counter. Called by the lifecycle controller's
// background checkpoint scheduler.
func (d *Driver) Checkpoint(snapshot types.Snapshot) error {
	if err := d.log.Checkpoint(snapshot); err != nil {
		return err
	}
	d.store.IncrementCheckpointsCount()
	return nil
}
