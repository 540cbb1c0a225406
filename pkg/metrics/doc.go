/*
Package metrics exposes corebroker's Prometheus metrics.

Gauges mirror statusstore.Store.Stats() (task/worker counts by status,
last applied log sequence number, checkpoints taken) and the slot
arbiter's current reservation count; UpdateFromStats refreshes them on
every Collector tick. Raft gauges (leader, peers, log index, applied
index) are set by the same Collector tick through a RaftStatsProvider
(satisfied by statuslog.RaftLog), since RaftLog does not import this
package; with a nil provider they are left unset.

Counters and the apply-duration histogram are updated inline by the
replication driver and lifecycle controller as edits are applied.

The "replication" health component — the one critical component
GetReadiness checks — is not a one-shot flag set at startup: Collector
recomputes it on every tick from real leader/catch-up state (always
healthy for a single-node MemoryLog deployment, healthy while this
replica holds leadership, healthy once a follower's applied index
reaches the leader's last index, unhealthy while it lags behind).

Handler() serves the standard Prometheus text exposition format for
scraping.
*/
package metrics
