package metrics

import (
	"net/http"
	"time"

	"github.com/majordodo/corebroker/pkg/statusstore"
	"github.com/majordodo/corebroker/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Status store gauges, refreshed from statusstore.Store.Stats().
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corebroker_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corebroker_workers_total",
			Help: "Total number of workers by status",
		},
		[]string{"status"},
	)

	LastLogSequenceNumber = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corebroker_last_log_sequence_number",
			Help: "Highest log sequence number applied to the status store",
		},
	)

	CheckpointsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corebroker_checkpoints_total",
			Help: "Total number of checkpoints taken",
		},
	)

	SlotsHeld = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corebroker_slots_held",
			Help: "Current number of slots reserved in the slot arbiter",
		},
	)

	// Raft replication-lag metrics.
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corebroker_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corebroker_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corebroker_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corebroker_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// Edit throughput / outcome counters and histograms.
	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corebroker_apply_duration_seconds",
			Help:    "Time to apply one edit under the status store's writer lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	TasksAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corebroker_tasks_added_total",
			Help: "Total number of ADD_TASK edits applied",
		},
	)

	TasksExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corebroker_tasks_expired_total",
			Help: "Total number of tasks expired due to a passed deadline",
		},
	)

	TasksRetriedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corebroker_tasks_retried_total",
			Help: "Total number of tasks sent back to WAITING after an ERROR report",
		},
	)

	SlotDuplicatesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corebroker_slot_duplicates_dropped_total",
			Help: "Total number of ADD_TASK submissions dropped due to a held slot",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TasksTotal,
		WorkersTotal,
		LastLogSequenceNumber,
		CheckpointsTotal,
		SlotsHeld,
		RaftLeader,
		RaftPeers,
		RaftLogIndex,
		RaftAppliedIndex,
		ApplyDuration,
		TasksAddedTotal,
		TasksExpiredTotal,
		TasksRetriedTotal,
		SlotDuplicatesDroppedTotal,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

var taskStatuses = []types.TaskStatus{types.TaskWaiting, types.TaskRunning, types.TaskFinished, types.TaskError}
var workerStatuses = []types.WorkerStatus{types.WorkerConnected, types.WorkerDisconnected, types.WorkerDead}

// UpdateFromStats refreshes the status-store-derived gauges. Called on
// every tick of a Collector.
func UpdateFromStats(stats statusstore.Stats, slotsHeld int) {
	for _, s := range taskStatuses {
		TasksTotal.WithLabelValues(s.String()).Set(float64(stats.TasksByStatus[s]))
	}
	for _, s := range workerStatuses {
		WorkersTotal.WithLabelValues(s.String()).Set(float64(stats.WorkersByStatus[s]))
	}
	LastLogSequenceNumber.Set(float64(stats.LastLogSeq))
	CheckpointsTotal.Set(float64(stats.Checkpoints))
	SlotsHeld.Set(float64(slotsHeld))
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
