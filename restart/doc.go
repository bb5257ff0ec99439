/*
Package restart decides whether a failed engine job is resubmitted.

An evaluation runs in three steps:

	FETCH     the engine's error log, through a short lived single-flight cache
	CLASSIFY  the log into a Strategy by ordered substring signatures
	DECIDE    restartable strategies are approved while the retry budget lasts

None of these steps return errors to the caller. A log that cannot be
fetched is classified as empty text, which never restarts; the Decision
carries a Degraded marker so callers and metrics can tell a fetch failure
apart from a log that simply matched nothing.

Engine variants provide their own signature lists (see restart/flink) and
share LogService and Retry.
*/
package restart
