/*
Package statuslog defines the broker's log abstraction — the single
source of ordering truth that the replication driver and lifecycle
controller depend on — and ships two implementations:

  - MemoryLog: a single-process, non-durable reference implementation
    used by unit tests and by cmd/brokerd's single-node demo mode. It
    satisfies the Log interface without pulling in Raft at all.

  - RaftLog: a Raft-backed implementation built on
    github.com/hashicorp/raft and github.com/hashicorp/raft-boltdb for
    the log/stable store, plus a dedicated bbolt bucket (via
    go.etcd.io/bbolt) for the single most recent broker-status
    snapshot, which is a different artifact from Raft's own internal
    snapshot/compaction mechanism.

Design note: the replication driver never holds the status store's
writer lock while calling LogStatusEdit, so the log is trusted to
impose a single total order across concurrent appenders on its own.
For RaftLog this is true by construction — Raft serializes all Apply
calls through its single leader loop — and is documented as a hard
requirement on any future Log implementation.
*/
package statuslog
