/*
Package replication wires a statuslog.Log, a slotarbiter.Arbiter, a
statusstore.Store and an applier.Applier into the single component that
owns the "append outside the lock, apply inside it" discipline.

ApplyModification is the leader's entry point: it pre-reserves a slot
(when present), appends to the log, and applies the result under the
store's writer lock — releasing the slot reservation if the append
itself fails. FollowTheLeader drives the steady-state follower loop,
Recover replays a snapshot plus log tail at startup, and StartWriting
arms the log once this replica becomes leader.

Log failures here are not retried: any ErrLogUnavailable surfacing from
the follower loop or from recovery is treated as a non-recoverable
replica fault, mirroring the applier's process-abort contract.
*/
package replication
