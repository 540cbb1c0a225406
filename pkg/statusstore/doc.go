/*
Package statusstore holds the broker's authoritative in-memory view of
tasks and workers.

Store owns two maps — taskID → Task and workerID → Worker — behind a
single sync.RWMutex, plus the bookkeeping counters (maxTaskID,
lastLogSequenceNumber, checkpointsCount) and an atomic nextTaskID
generator. All mutation goes through the writer lock and is performed
exclusively by the edit applier (package applier) and by recovery/purge;
every other caller reads through the reader lock and receives a
structural TaskView/WorkerView copy, never a pointer into the map.

Readers never block each other: the writer lock is only ever held for
the duration of a single edit's apply, a purge pass, or a recovery pass.
*/
package statusstore
