/*
Package log provides structured logging for the broker core using zerolog.

It wraps zerolog to provide JSON or console-formatted logging with
component-specific child loggers (WithComponent, WithTaskID, WithWorkerID),
configurable severity levels, and a handful of package-level helpers for the
common case. All logs carry a timestamp.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	applierLog := log.WithComponent("applier")
	applierLog.Info().Int64("seq", seq).Str("kind", edit.Kind.String()).Msg("applied edit")

	taskLog := log.WithTaskID(taskID)
	taskLog.Warn().Msg("deadline expired during assignment")

Fatal exits the process (os.Exit via zerolog); it is reserved for the
process-abort conditions the edit applier and replication driver raise
on invariant violations.
*/
package log
