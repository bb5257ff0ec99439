package dispatcher

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/enginedispatch/common/log/tags"
	"github.com/twitter/enginedispatch/common/stats"
	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/engine"
	"github.com/twitter/enginedispatch/jobstore"
	"github.com/twitter/enginedispatch/jobstore/memory"
	"github.com/twitter/enginedispatch/queue"
	"github.com/twitter/enginedispatch/restart"
)

// FailureConfig bounds what a resubmission changes and how long it waits.
// A zero BackoffInitial resubmits without waiting.
type FailureConfig struct {
	NodeAddress       string
	Apply             restart.ApplyOptions
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffMultiplier float64
}

// Bound on the store writes made after ctx is done, so a job is left for Recover.
const parkTimeout = 5 * time.Second

// Outcome is what HandleFailure did with a failed job.
type Outcome struct {
	Resubmitted bool
	Decision    restart.Decision
	// Wait before the job was queued again.
	Delay time.Duration
	// The resubmitted copy. It is recorded in the store when the decision
	// is made and queued only when Resubmitted.
	Job *domain.Job
	// ctx ended before the job could be queued again or its log read. The
	// job is left in the store at a stage Recover lists.
	Interrupted bool
}

// FailureHandler decides the fate of jobs the engine reports as failed.
type FailureHandler struct {
	queues    *queue.GroupPriorityQueue
	evaluator restart.FailureEvaluator
	client    engine.LogFetcher
	store     jobstore.Store
	config    FailureConfig
	stat      stats.StatsReceiver
}

func NewFailureHandler(
	queues *queue.GroupPriorityQueue,
	evaluator restart.FailureEvaluator,
	client engine.LogFetcher,
	store jobstore.Store,
	config FailureConfig,
	stat stats.StatsReceiver,
) *FailureHandler {
	if store == nil {
		store = memory.NewStore()
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &FailureHandler{
		queues:    queues,
		evaluator: evaluator,
		client:    client,
		store:     store,
		config:    config,
		stat:      stat.Scope("dispatcher"),
	}
}

// HandleFailure evaluates job's failure. A restartable job has its
// strategy applied, its retry count raised and is recorded at
// StagePriority, then queued again as a new entry after a backoff delay;
// any other job is removed from the store.
//
// If ctx ends during the delay the recorded resubmission stays in the store
// for Recover. If ctx was already done when the log was fetched the failure
// is not judged at all: the job is moved to StageLacking as it is.
func (h *FailureHandler) HandleFailure(ctx context.Context, job *domain.Job) Outcome {
	h.stat.Counter(stats.DispatchFailureCounter).Inc(1)
	d := h.evaluator.EvaluateFailure(ctx, job, h.client)
	fields := tags.JobFields(job)

	// A degraded decision made after ctx ended says nothing about the engine.
	if d.Degraded && ctx.Err() != nil {
		h.stat.Counter(stats.DispatchInterruptedCounter).Inc(1)
		log.WithFields(fields).Info("shutting down before the failure could be evaluated, leaving job for recovery")
		pctx, cancel := h.parkContext(ctx)
		defer cancel()
		if err := h.store.UpdateStage(pctx, job.JobID, domain.StageLacking, h.config.NodeAddress); err != nil {
			h.storeError(job, err)
		}
		return Outcome{Decision: d, Interrupted: true}
	}

	if !d.Degraded {
		if h.evaluator.CheckFailureForEngineDown(d.Log) {
			h.stat.Counter(stats.DispatchEngineDownCounter).Inc(1)
			log.WithFields(fields).Warn("job failed because the engine was down")
		}
		if h.evaluator.CheckNOResource(d.Log) {
			h.stat.Counter(stats.DispatchNoResourceCounter).Inc(1)
			log.WithFields(fields).Warn("job failed because the engine had no free resources")
		}
	}

	if !d.Restart {
		h.stat.Counter(stats.DispatchAbandonedCounter).Inc(1)
		log.WithFields(fields).WithField("reason", d.Reason).Info("job will not be restarted")
		if err := h.store.Delete(ctx, job.JobID); err != nil {
			h.storeError(job, err)
		}
		return Outcome{Decision: d}
	}

	next := job.Copy()
	d.Strategy.Apply(next, h.config.Apply)
	next.RetryCount++
	next.EngineJobID = ""
	next.AppID = ""
	next.SubmitTime = time.Time{}
	h.record(ctx, next)

	delay := h.delay(job.RetryCount)
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			h.stat.Counter(stats.DispatchInterruptedCounter).Inc(1)
			log.WithFields(fields).Info("shutting down before the job could be resubmitted, leaving it for recovery")
			return Outcome{Decision: d, Delay: delay, Job: next, Interrupted: true}
		case <-t.C:
		}
	}

	h.queues.Add(next)
	h.stat.Counter(stats.DispatchResubmittedCounter).Inc(1)
	log.WithFields(tags.JobFields(next)).
		WithFields(log.Fields{tags.Strategy: d.Strategy, "memoryMB": next.MemoryMB, "delay": delay}).
		Info("job resubmitted")
	return Outcome{Resubmitted: true, Decision: d, Delay: delay, Job: next}
}

// delay is the exponential backoff interval for the given retry count.
func (h *FailureHandler) delay(retryCount int) time.Duration {
	if h.config.BackoffInitial <= 0 {
		return 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.config.BackoffInitial
	if h.config.BackoffMax > 0 {
		b.MaxInterval = h.config.BackoffMax
	}
	if h.config.BackoffMultiplier > 0 {
		b.Multiplier = h.config.BackoffMultiplier
	}
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 0; i < retryCount; i++ {
		d = b.NextBackOff()
	}
	return d
}

// record writes the resubmission at StagePriority, replacing the failed run.
func (h *FailureHandler) record(ctx context.Context, next *domain.Job) {
	c, err := jobstore.NewJobCache(next, domain.StagePriority, h.config.NodeAddress)
	if err != nil {
		h.storeError(next, err)
		return
	}
	pctx, cancel := h.parkContext(ctx)
	defer cancel()
	if err := h.store.Insert(pctx, c); err != nil {
		h.storeError(next, err)
	}
}

// parkContext keeps ctx's values but not its cancellation, so writes that
// hand a job over to Recover still reach the store during shutdown.
func (h *FailureHandler) parkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), parkTimeout)
}

func (h *FailureHandler) storeError(job *domain.Job, err error) {
	h.stat.Counter(stats.DispatchStoreErrCounter).Inc(1)
	log.WithFields(tags.JobFields(job)).WithField(tags.Err, err).Error("could not update job store")
}
