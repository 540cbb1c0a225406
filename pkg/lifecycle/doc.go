/*
Package lifecycle implements the broker's task lifecycle controller: the
public surface the rest of the broker calls (AddTask,
AssignTasksToWorker, TaskFinished, worker presence edits, PurgeTasks,
Checkpoint). It is the only place in the core that reads the wall
clock: every Edit's timestamp fields are stamped here, at construction
time, before handing the edit to the replication driver — never
recomputed by the applier, so every replica derives the same state from
the same edit.

It depends on a replication.Driver for submission, a statusstore.Store
for reads, and a ReadyQueue for the external ready-to-run task heap.
*/
package lifecycle
