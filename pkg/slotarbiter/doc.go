/*
Package slotarbiter implements the broker's slot deduplication set.

A "slot" is an optional, application-supplied string carried on an
ADD_TASK edit. At most one non-terminal task may hold a given slot name
cluster-wide; the arbiter is the primitive both the replication driver
(leader-side pre-reservation) and the edit applier (replay/follower-side
re-assignment) use to enforce that.

The arbiter has its own internal synchronization, independent of the
status store's reader-writer lock: it must be safe to call from the
leader-append path (outside the status lock) and from terminal-transition
applies (inside the status writer lock) without risk of deadlock.
*/
package slotarbiter
