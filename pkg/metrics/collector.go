package metrics

import (
	"fmt"
	"time"

	"github.com/majordodo/corebroker/pkg/scheduler"
	"github.com/majordodo/corebroker/pkg/slotarbiter"
	"github.com/majordodo/corebroker/pkg/statusstore"
)

// RaftStatsProvider is satisfied by statuslog.RaftLog. It is declared
// here, not imported, so a single-node MemoryLog deployment can run
// Collector with a nil provider and simply skip the Raft gauges.
type RaftStatsProvider interface {
	IsLeader() bool
	RaftStats() (lastIndex, appliedIndex uint64, peers int)
}

// Collector periodically refreshes the package gauges from a
// statusstore.Store, a slotarbiter.Arbiter, and optionally a Raft log,
// on a ticker-driven collection loop built on scheduler.Runner instead
// of an inline goroutine.
type Collector struct {
	store  *statusstore.Store
	slots  *slotarbiter.Arbiter
	raft   RaftStatsProvider
	runner *scheduler.Runner
}

// NewCollector builds a Collector that samples every interval. raft may
// be nil.
func NewCollector(store *statusstore.Store, slots *slotarbiter.Arbiter, raft RaftStatsProvider, interval time.Duration) *Collector {
	c := &Collector{store: store, slots: slots, raft: raft}
	c.runner = scheduler.New("metrics-collector", interval, c.collect)
	return c
}

// Start samples once immediately, then on the configured interval.
func (c *Collector) Start() {
	c.collect()
	c.runner.Start()
}

// Stop ends the sampling loop.
func (c *Collector) Stop() {
	c.runner.Stop()
}

func (c *Collector) collect() {
	UpdateFromStats(c.store.Stats(), c.slots.Count())

	if c.raft == nil {
		UpdateComponent("replication", true, "single-node, no replication configured")
		return
	}

	lastIndex, appliedIndex, peers := c.raft.RaftStats()
	RaftLogIndex.Set(float64(lastIndex))
	RaftAppliedIndex.Set(float64(appliedIndex))
	RaftPeers.Set(float64(peers))

	if c.raft.IsLeader() {
		RaftLeader.Set(1)
		UpdateComponent("replication", true, "leader")
		return
	}
	RaftLeader.Set(0)

	// A follower is ready once it has replayed every entry the leader has
	// already committed; a positive gap means it is still catching up or
	// has lost touch with the leader.
	if lastIndex == 0 || appliedIndex >= lastIndex {
		UpdateComponent("replication", true, "follower, caught up")
		return
	}
	UpdateComponent("replication", false, fmt.Sprintf("follower lagging: applied %d of %d", appliedIndex, lastIndex))
}
