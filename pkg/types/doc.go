/*
Package types defines the core data structures of the broker's status core.

It contains the domain model shared by every other package: tasks, workers,
the typed log edits that mutate them, and the self-contained snapshot record
used for cold recovery. Nothing in this package performs I/O or holds locks;
it is pure data plus the small set of status/edit enums the rest of the core
switches on.

# Core Types

Status entities:
  - Task: a unit of work, keyed by a monotonically increasing int64 taskID
  - Worker: a known execution node, keyed by a stable string workerID
  - TaskStatus / WorkerStatus: the finite state each entity cycles through

Replication:
  - Edit: the envelope applied to the status store, one variant per EditKind
  - EditKind: ADD_TASK, ASSIGN_TASK_TO_WORKER, TASK_STATUS_CHANGE,
    WORKER_CONNECTED, WORKER_DISCONNECTED, WORKER_DIED
  - Snapshot: (maxTaskID, lastSeq, tasks, workers) for cold recovery

Views:
  - TaskView / WorkerView: structural copies handed to readers, kept
    distinct from Task/Worker so ownership of the live records never
    leaks outside the status store's lock.
*/
package types
