package stats

/*
This file defines all the metrics being collected.   As new metrics are added please follow this pattern.
*/

const (
	/************************* Group queue metrics **************************/
	/*
		number of groups known to the group priority queue, including the default group
	*/
	QueueGroupsGauge = "groupsGauge"

	/*
		number of jobs added to any group queue (new submissions and resubmissions)
	*/
	QueueEnqueuedCounter = "enqueuedCounter"

	/*
		number of queued jobs removed before dispatch
	*/
	QueueRemovedCounter = "removedCounter"

	/*
		number of jobs waiting across all groups, updated by the dispatcher each pass
	*/
	QueuePendingJobsGauge = "pendingJobsGauge"

	/************************* Failure log cache metrics **************************/
	/*
		lookups answered from a fresh cache entry
	*/
	LogCacheHitCounter = "hitCounter"

	/*
		lookups that found no fresh entry
	*/
	LogCacheMissCounter = "missCounter"

	/*
		loader invocations (one per key per in-flight load)
	*/
	LogCacheLoadCounter = "loadCounter"

	/*
		lookups that attached to another caller's in-flight load
	*/
	LogCacheSharedLoadCounter = "sharedLoadCounter"

	/*
		loads that failed or returned no text; these are never cached
	*/
	LogCacheLoadFailureCounter = "loadFailureCounter"

	/*
		entries found but older than the ttl
	*/
	LogCacheExpiredCounter = "expiredCounter"

	/*
		time spent in the loader
	*/
	LogCacheLoadLatency_ms = "loadLatency_ms"

	/************************* Restart decision metrics **************************/
	/*
		failure evaluations performed
	*/
	RestartEvaluationCounter = "evaluationCounter"

	/*
		evaluations approving a resubmission
	*/
	RestartApprovedCounter = "approvedCounter"

	/*
		evaluations where no signature matched
	*/
	RestartClassificationMissCounter = "classificationMissCounter"

	/*
		evaluations where a restartable cause was found but the retry budget was spent
	*/
	RestartBudgetExhaustedCounter = "budgetExhaustedCounter"

	/*
		evaluations where the error log could not be fetched
	*/
	RestartFetchFailureCounter = "fetchFailureCounter"

	/*
		classifications by strategy, scoped with the strategy name
	*/
	RestartStrategyCounter = "strategyCounter"

	/************************* Dispatcher metrics **************************/
	/*
		jobs handed to the engine
	*/
	DispatchSubmittedCounter = "submittedCounter"

	/*
		engine submissions that failed; the job is requeued as lacking resources
	*/
	DispatchSubmitErrCounter = "submitErrCounter"

	/*
		dispatch passes
	*/
	DispatchPassCounter = "passCounter"

	/*
		passes that found every group empty
	*/
	DispatchIdlePassCounter = "idlePassCounter"

	/*
		groups skipped in a pass because of their rate limit
	*/
	DispatchThrottledCounter = "throttledCounter"

	/*
		time from queue entry to engine submission
	*/
	DispatchQueueLatency_ms = "queueLatency_ms"

	/*
		failures reported by the engine
	*/
	DispatchFailureCounter = "failureCounter"

	/*
		failures whose log signals the engine itself was down
	*/
	DispatchEngineDownCounter = "engineDownCounter"

	/*
		failures whose log signals the engine had no free resources
	*/
	DispatchNoResourceCounter = "noResourceCounter"

	/*
		failed jobs put back into their group queue
	*/
	DispatchResubmittedCounter = "resubmittedCounter"

	/*
		failed jobs dropped because they may not be restarted
	*/
	DispatchAbandonedCounter = "abandonedCounter"

	/*
		failures left in the store for recovery because the handler was shutting down
	*/
	DispatchInterruptedCounter = "interruptedCounter"

	/*
		job stage store operations that failed
	*/
	DispatchStoreErrCounter = "storeErrCounter"
)
