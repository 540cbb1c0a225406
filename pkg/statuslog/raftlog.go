package statuslog

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/majordodo/corebroker/pkg/types"
	"github.com/rs/zerolog"
)

// Config configures a RaftLog: node identity, transport address, and
// on-disk paths, narrowed to exactly what the log abstraction needs.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string

	// Bootstrap is true only for the node that forms a brand new single
	// member cluster. Joining nodes are added later via AddVoter, called
	// against the current leader.
	Bootstrap bool

	Logger       zerolog.Logger
	ApplyTimeout time.Duration
}

// RaftLog is the durable, replicated Log implementation: github.com/hashicorp/raft
// drives consensus, github.com/hashicorp/raft-boltdb backs its log and
// stable stores, and a dedicated bbolt bucket (snapshotStore) holds the
// single most recent broker status snapshot.
//
// RaftLog deliberately keeps the raft.FSM thin: logFSM.Apply records only
// the applied index, never the broker status itself. The real Edit
// payload is decoded and pushed to the caller's ApplyFunc by
// FollowTheLeader/Recovery, reading committed entries straight out of the
// raft-boltdb log store by index. This keeps LogStatusEdit's contract
// (append, return a seq, nothing more) honest on the leader, where the
// FSM's own Apply callback fires for every commit including the leader's
// own — double-applying through both paths would violate the single
// apply-per-edit invariant the replication driver relies on.
type RaftLog struct {
	mu               sync.Mutex
	cond             *sync.Cond
	lastAppliedIndex uint64
	leader           bool
	closed           bool

	raft         *raft.Raft
	logStore     *raftboltdb.BoltStore
	stableStore  *raftboltdb.BoltStore
	snapshots    *snapshotStore
	logger       zerolog.Logger
	applyTimeout time.Duration
}

// NewRaftLog builds and bootstraps (or joins) a Raft-backed log rooted
// at cfg.DataDir: a TCP transport, a file-based Raft snapshot store,
// and BoltDB-backed log and stable stores.
func NewRaftLog(cfg Config) (*RaftLog, error) {
	applyTimeout := cfg.ApplyTimeout
	if applyTimeout == 0 {
		applyTimeout = 5 * time.Second
	}

	rl := &RaftLog{logger: cfg.Logger, applyTimeout: applyTimeout}
	rl.cond = sync.NewCond(&rl.mu)

	snapshots, err := newSnapshotStore(filepath.Join(cfg.DataDir, "broker-snapshot.db"))
	if err != nil {
		return nil, err
	}
	rl.snapshots = snapshots

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)
	raftConfig.HeartbeatTimeout = 500 * time.Millisecond
	raftConfig.ElectionTimeout = 500 * time.Millisecond
	raftConfig.CommitTimeout = 50 * time.Millisecond
	raftConfig.LeaderLeaseTimeout = 250 * time.Millisecond

	notifyCh := make(chan bool, 1)
	raftConfig.NotifyCh = notifyCh

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		snapshots.Close()
		return nil, fmt.Errorf("statuslog: resolve bind addr: %w", err)
	}

	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		snapshots.Close()
		return nil, fmt.Errorf("statuslog: create transport: %w", err)
	}

	raftSnapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		snapshots.Close()
		return nil, fmt.Errorf("statuslog: create raft snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		snapshots.Close()
		return nil, fmt.Errorf("statuslog: create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		snapshots.Close()
		logStore.Close()
		return nil, fmt.Errorf("statuslog: create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftConfig, &logFSM{rl: rl}, logStore, stableStore, raftSnapshots, transport)
	if err != nil {
		snapshots.Close()
		logStore.Close()
		stableStore.Close()
		return nil, fmt.Errorf("statuslog: create raft: %w", err)
	}

	rl.raft = r
	rl.logStore = logStore
	rl.stableStore = stableStore

	if cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{ID: raftConfig.LocalID, Address: transport.LocalAddr()},
			},
		}
		future := r.BootstrapCluster(configuration)
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("statuslog: bootstrap cluster: %w", err)
		}
	}

	go rl.watchLeadership(notifyCh)

	return rl, nil
}

func (r *RaftLog) watchLeadership(notifyCh chan bool) {
	for leader := range notifyCh {
		r.mu.Lock()
		r.leader = leader
		r.cond.Broadcast()
		r.mu.Unlock()
		r.logger.Info().Bool("leader", leader).Msg("raft leadership changed")
	}
}

// AddVoter adds nodeID at addr as a voting member. Called against the
// current leader; not part of the Log interface. It is the way to grow a
// cluster past its bootstrap member; cmd/brokerd does not call it.
func (r *RaftLog) AddVoter(nodeID, addr string) error {
	future := r.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second)
	return future.Error()
}

func (r *RaftLog) LogStatusEdit(edit types.Edit) (uint64, error) {
	data, err := json.Marshal(edit)
	if err != nil {
		return 0, fmt.Errorf("statuslog: marshal edit: %w", err)
	}

	future := r.raft.Apply(data, r.applyTimeout)
	if err := future.Error(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLogUnavailable, err)
	}
	return future.Index(), nil
}

// waitForProgress blocks until either a new index has been applied past
// after, this node has become leader, or the log has been closed.
func (r *RaftLog) waitForProgress(after uint64) (last uint64, leader bool, closed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.lastAppliedIndex <= after && !r.closed && !r.leader {
		r.cond.Wait()
	}
	return r.lastAppliedIndex, r.leader, r.closed
}

func (r *RaftLog) replayRange(fromExclusive, toInclusive uint64, apply ApplyFunc) error {
	for idx := fromExclusive + 1; idx <= toInclusive; idx++ {
		var entry raft.Log
		if err := r.logStore.GetLog(idx, &entry); err != nil {
			return fmt.Errorf("%w: read log entry %d: %v", ErrLogUnavailable, idx, err)
		}
		if entry.Type != raft.LogCommand {
			continue
		}
		var edit types.Edit
		if err := json.Unmarshal(entry.Data, &edit); err != nil {
			return fmt.Errorf("%w: decode log entry %d: %v", ErrLogUnavailable, idx, err)
		}
		apply(idx, edit)
	}
	return nil
}

// FollowTheLeader replays committed entries after fromSeq as they land,
// blocking between batches on the same condition variable logFSM.Apply
// broadcasts on, until this replica is elected leader or the log closes.
func (r *RaftLog) FollowTheLeader(fromSeq uint64, apply ApplyFunc) error {
	cursor := fromSeq
	for {
		last, leader, closed := r.waitForProgress(cursor)
		if closed {
			return nil
		}
		if last > cursor {
			if err := r.replayRange(cursor, last, apply); err != nil {
				return err
			}
			cursor = last
		}
		if leader {
			return nil
		}
	}
}

func (r *RaftLog) IsLeader() bool {
	return r.raft.State() == raft.Leader
}

// RaftStats reports raw Raft progress for the metrics collector.
func (r *RaftLog) RaftStats() (lastIndex, appliedIndex uint64, peers int) {
	lastIndex = r.raft.LastIndex()
	appliedIndex = r.raft.AppliedIndex()
	peers = 1
	if future := r.raft.GetConfiguration(); future.Error() == nil {
		peers = len(future.Configuration().Servers)
	}
	return lastIndex, appliedIndex, peers
}

func (r *RaftLog) IsWritable() bool {
	return r.IsLeader()
}

func (r *RaftLog) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// StartWriting confirms this replica has actually assumed leadership.
// Raft elects leaders on its own; the replication driver calls this after
// FollowTheLeader returns to arm itself for LogStatusEdit calls.
func (r *RaftLog) StartWriting() error {
	if !r.IsLeader() {
		return ErrLogUnavailable
	}
	return nil
}

// WaitWhileLeader blocks while this replica holds Raft leadership,
// returning as soon as watchLeadership observes a NotifyCh transition to
// false or the log is closed.
func (r *RaftLog) WaitWhileLeader() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.leader && !r.closed {
		r.cond.Wait()
	}
}

func (r *RaftLog) LoadBrokerStatusSnapshot() (types.Snapshot, error) {
	return r.snapshots.Load()
}

// Recovery replays committed entries after fromSeq up to the current
// applied index, without blocking for more to arrive.
func (r *RaftLog) Recovery(fromSeq uint64, apply ApplyFunc) error {
	return r.replayRange(fromSeq, r.raft.AppliedIndex(), apply)
}

// Checkpoint durably records snapshot, then asks Raft to take its own
// internal snapshot so it can compact its log up to the applied index.
// Raft's compaction is best effort: a failure there does not undo the
// broker snapshot that was just saved.
func (r *RaftLog) Checkpoint(snapshot types.Snapshot) error {
	if err := r.snapshots.Save(snapshot); err != nil {
		return err
	}
	if future := r.raft.Snapshot(); future.Error() != nil {
		r.logger.Warn().Err(future.Error()).Msg("raft snapshot after checkpoint failed")
	}
	return nil
}

func (r *RaftLog) Close() error {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()

	if future := r.raft.Shutdown(); future.Error() != nil {
		return fmt.Errorf("statuslog: raft shutdown: %w", future.Error())
	}
	if err := r.logStore.Close(); err != nil {
		return err
	}
	if err := r.stableStore.Close(); err != nil {
		return err
	}
	return r.snapshots.Close()
}

// logFSM is Raft's FSM callback target. It carries no broker status of
// its own — only the highest applied log index — so Apply never blocks
// or fails on application-level errors; those are surfaced later, to the
// replication driver, via FollowTheLeader/Recovery reading the same
// entries back out of the log store.
type logFSM struct {
	rl *RaftLog
}

func (f *logFSM) Apply(l *raft.Log) interface{} {
	f.rl.mu.Lock()
	if l.Index > f.rl.lastAppliedIndex {
		f.rl.lastAppliedIndex = l.Index
	}
	f.rl.cond.Broadcast()
	f.rl.mu.Unlock()
	return nil
}

func (f *logFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.rl.mu.Lock()
	idx := f.rl.lastAppliedIndex
	f.rl.mu.Unlock()
	return &logFSMSnapshot{lastIndex: idx}, nil
}

func (f *logFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var payload struct {
		LastIndex uint64 `json:"last_index"`
	}
	if err := json.NewDecoder(rc).Decode(&payload); err != nil {
		return fmt.Errorf("statuslog: decode fsm snapshot: %w", err)
	}
	f.rl.mu.Lock()
	f.rl.lastAppliedIndex = payload.LastIndex
	f.rl.mu.Unlock()
	return nil
}

type logFSMSnapshot struct {
	lastIndex uint64
}

func (s *logFSMSnapshot) Persist(sink raft.SnapshotSink) error {
	data, err := json.Marshal(struct {
		LastIndex uint64 `json:"last_index"`
	}{LastIndex: s.lastIndex})
	if err != nil {
		sink.Cancel()
		return err
	}
	if _, err := sink.Write(data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *logFSMSnapshot) Release() {}
