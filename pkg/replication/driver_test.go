package replication

import (
	"testing"
	"time"

	"github.com/majordodo/corebroker/pkg/applier"
	"github.com/majordodo/corebroker/pkg/slotarbiter"
	"github.com/majordodo/corebroker/pkg/statuslog"
	"github.com/majordodo/corebroker/pkg/statusstore"
	"github.com/majordodo/corebroker/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T) (*Driver, *statuslog.MemoryLog, *statusstore.Store, *slotarbiter.Arbiter, *[]string) {
	t.Helper()
	l := statuslog.NewMemoryLog()
	store := statusstore.New()
	slots := slotarbiter.New()
	app := applier.New(store, slots)
	var aborts []string
	d := NewWithAbort(l, store, slots, app, func(reason string) { aborts = append(aborts, reason) })
	return d, l, store, slots, &aborts
}

func TestApplyModificationAssignsTaskID(t *testing.T) {
	d, _, store, _, _ := newTestDriver(t)

	id, err := d.ApplyModification(types.Edit{Kind: types.AddTask, TaskID: 1, UserID: "u"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)

	view, ok := store.GetTask(1)
	require.True(t, ok)
	assert.Equal(t, types.TaskWaiting, view.Status)
}

func TestApplyModificationSlotDuplicateDropsSilently(t *testing.T) {
	d, l, store, slots, _ := newTestDriver(t)

	_, err := d.ApplyModification(types.Edit{Kind: types.AddTask, TaskID: 1, Slot: "S"})
	require.NoError(t, err)

	id, err := d.ApplyModification(types.Edit{Kind: types.AddTask, TaskID: 2, Slot: "S"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, id)

	_, ok := store.GetTask(2)
	assert.False(t, ok, "duplicate submission must not be logged or applied")
	assert.True(t, slots.Held("S"))

	entries := 0
	_ = l.Recovery(0, func(seq uint64, edit types.Edit) { entries++ })
	assert.Equal(t, 1, entries, "only the first submission should have reached the log")
}

func TestApplyModificationReleasesSlotOnLogFailure(t *testing.T) {
	d, l, _, slots, _ := newTestDriver(t)
	l.SetUnavailable(true)

	_, err := d.ApplyModification(types.Edit{Kind: types.AddTask, TaskID: 1, Slot: "S"})
	assert.ErrorIs(t, err, statuslog.ErrLogUnavailable)
	assert.False(t, slots.Held("S"), "slot reservation must be undone when the append fails")
}

func TestFollowTheLeaderExitsWhenElected(t *testing.T) {
	d, l, _, _, aborts := newTestDriver(t)
	follower := statuslog.NewMemoryFollowerLog()
	d.log = follower

	done := make(chan struct{})
	go func() {
		d.FollowTheLeader()
		close(done)
	}()

	require.NoError(t, follower.StartWriting())
	<-done
	assert.Empty(t, *aborts)
	_ = l
}

func TestRecoverInstallsSnapshotAndReplaysTail(t *testing.T) {
	d, l, store, _, _ := newTestDriver(t)

	seq1, err := l.LogStatusEdit(types.Edit{Kind: types.AddTask, TaskID: 1, CreatedTimestamp: 1})
	require.NoError(t, err)

	snapshot := types.Snapshot{
		MaxTaskID:             1,
		LastLogSequenceNumber: seq1,
		Tasks: []*types.Task{
			{ID: 1, Status: types.TaskWaiting, CreatedTimestamp: 1},
		},
	}
	require.NoError(t, l.Checkpoint(snapshot))

	seq2, err := l.LogStatusEdit(types.Edit{Kind: types.AddTask, TaskID: 2, CreatedTimestamp: 2})
	require.NoError(t, err)
	_ = seq2

	require.NoError(t, d.Recover())

	view1, ok := store.GetTask(1)
	require.True(t, ok)
	assert.Equal(t, types.TaskWaiting, view1.Status)

	view2, ok := store.GetTask(2)
	require.True(t, ok)
	assert.Equal(t, types.TaskWaiting, view2.Status)

	assert.EqualValues(t, 3, store.NextTaskID(), "nextTaskId must be rebased past the tail, not just the snapshot")
}

func TestStartWritingArmsLog(t *testing.T) {
	d, _, _, _, _ := newTestDriver(t)
	require.NoError(t, d.StartWriting())
}

func TestRunReturnsToFollowerAfterLeadershipLost(t *testing.T) {
	d, _, _, _, aborts := newTestDriver(t)
	follower := statuslog.NewMemoryFollowerLog()
	d.log = follower

	done := make(chan struct{})
	go func() {
		d.Run()
		close(done)
	}()

	require.NoError(t, follower.StartWriting())
	require.Eventually(t, follower.IsLeader, time.Second, time.Millisecond)

	follower.StepDown()
	require.Eventually(t, func() bool { return !follower.IsLeader() }, time.Second, time.Millisecond)

	require.NoError(t, follower.StartWriting())
	require.Eventually(t, follower.IsLeader, time.Second, time.Millisecond)

	require.NoError(t, follower.Close())
	<-done
	assert.Empty(t, *aborts)
}
