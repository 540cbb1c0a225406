/*
Package applier implements the broker's edit applier: the single,
deterministic function of (pre-state, edit) that every replica runs, in
log order, to mutate its statusstore.Store.

Apply must never perform I/O and must never fail for environmental
reasons. A failure here means the replica's status has diverged from
what the log says happened, which is unrecoverable: Apply calls
log.Fatal (process abort) rather than returning an error for any
programmer/invariant violation (missing task, workerId mismatch,
unknown edit kind, illegal status). Benign no-ops — replaying a slot
assignment that already holds, or a status change on an already-terminal
task — are expected and must not abort.
*/
package applier
