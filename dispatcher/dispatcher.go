// Package dispatcher drains the group queues into the engine and decides
// what happens to jobs the engine reports as failed.
//
// A dispatch pass visits every group once, in name order, and submits at
// most one job per non-empty group, so a group with a deep backlog cannot
// starve the others. When a pass finds nothing to do the dispatcher blocks
// until a job is added.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/enginedispatch/common/log/tags"
	"github.com/twitter/enginedispatch/common/stats"
	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/engine"
	"github.com/twitter/enginedispatch/jobstore"
	"github.com/twitter/enginedispatch/jobstore/memory"
	"github.com/twitter/enginedispatch/queue"
)

const DefaultThrottleWait = 100 * time.Millisecond

// Config variables read at initialization
// NodeAddress -
//
//	the owner recorded with every job stage; Recover lists jobs by it.
//
// ThrottleWait -
//
//	how long to wait before the next pass when no job could be submitted
//	because of rate limits or engine errors.
//
// SubmitTimeout -
//
//	bound on a single engine submission, zero for none.
//
// GroupLimits, DefaultGroupLimit -
//
//	per-group dispatch rates. DefaultGroupLimit applies to groups
//	without their own entry.
type Config struct {
	NodeAddress       string
	ThrottleWait      time.Duration
	SubmitTimeout     time.Duration
	GroupLimits       []GroupLimit
	DefaultGroupLimit GroupLimit
}

func (c Config) String() string {
	return fmt.Sprintf("DispatcherConfig: NodeAddress: %s, ThrottleWait: %s, SubmitTimeout: %s, GroupLimits: %v, DefaultGroupLimit: %+v",
		c.NodeAddress, c.ThrottleWait, c.SubmitTimeout, c.GroupLimits, c.DefaultGroupLimit)
}

type Dispatcher struct {
	queues    *queue.GroupPriorityQueue
	submitter engine.Submitter
	store     jobstore.Store
	config    Config
	limits    *groupLimiter
	stat      stats.StatsReceiver
}

// pass summarizes one dispatch pass.
type pass struct {
	dispatched int
	throttled  int
	failed     int
}

// New creates a dispatcher. A nil store keeps job stages in memory.
func New(queues *queue.GroupPriorityQueue, submitter engine.Submitter, store jobstore.Store, config Config, stat stats.StatsReceiver) *Dispatcher {
	if store == nil {
		store = memory.NewStore()
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	if config.ThrottleWait <= 0 {
		config.ThrottleWait = DefaultThrottleWait
	}
	log.Info(config)
	return &Dispatcher{
		queues:    queues,
		submitter: submitter,
		store:     store,
		config:    config,
		limits:    newGroupLimiter(config.GroupLimits, config.DefaultGroupLimit),
		stat:      stat.Scope("dispatcher"),
	}
}

// Submit records job at StagePriority and queues it. The job is not queued
// if it could not be recorded.
func (d *Dispatcher) Submit(ctx context.Context, job *domain.Job) error {
	job.GroupName = domain.NormalizeGroup(job.GroupName)
	c, err := jobstore.NewJobCache(job, domain.StagePriority, d.config.NodeAddress)
	if err != nil {
		return err
	}
	if err := d.store.Insert(ctx, c); err != nil {
		d.stat.Counter(stats.DispatchStoreErrCounter).Inc(1)
		return err
	}
	d.queues.Add(job)
	log.WithFields(tags.JobFields(job)).Debug("job queued")
	return nil
}

// Recover queues again the jobs this node recorded as waiting, for use at startup.
func (d *Dispatcher) Recover(ctx context.Context) (int, error) {
	recovered := 0
	for _, stage := range []domain.Stage{domain.StagePriority, domain.StageLacking} {
		cs, err := d.store.ListByStage(ctx, d.config.NodeAddress, stage)
		if err != nil {
			return recovered, err
		}
		for _, c := range cs {
			job, err := c.Job()
			if err != nil {
				log.WithField(tags.JobID, c.JobID).WithField(tags.Err, err).Error("dropping unreadable job")
				continue
			}
			job.SubmitTime = time.Time{}
			d.queues.Add(job)
			recovered++
		}
	}
	log.Infof("recovered %d jobs for node %s", recovered, d.config.NodeAddress)
	return recovered, nil
}

// Run dispatches until ctx is done and returns ctx.Err().
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info("Starting dispatch loop")
	for {
		// Taken before the pass so an Add during the pass is not missed.
		wake := d.queues.Wait()
		p := d.step(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		switch {
		case p.dispatched > 0:
		case p.throttled > 0 || p.failed > 0:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.config.ThrottleWait):
			}
		default:
			d.stat.Counter(stats.DispatchIdlePassCounter).Inc(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wake:
			}
		}
	}
}

// Step runs one dispatch pass and returns the number of jobs submitted.
func (d *Dispatcher) Step(ctx context.Context) int {
	return d.step(ctx).dispatched
}

func (d *Dispatcher) step(ctx context.Context) pass {
	d.stat.Counter(stats.DispatchPassCounter).Inc(1)
	var p pass
	for _, g := range d.queues.Snapshot() {
		if ctx.Err() != nil {
			break
		}
		if g.Queue.Size() == 0 {
			continue
		}
		if !d.limits.allow(g.Name) {
			p.throttled++
			d.stat.Counter(stats.DispatchThrottledCounter).Inc(1)
			continue
		}
		job, ok := g.Queue.Poll()
		if !ok {
			continue
		}
		if d.dispatch(ctx, job) {
			p.dispatched++
		} else {
			p.failed++
		}
	}
	d.stat.Gauge(stats.QueuePendingJobsGauge).Update(int64(d.queues.Size()))
	return p
}

// dispatch submits job, requeueing it in its old place as lacking resources if the engine refuses it.
func (d *Dispatcher) dispatch(ctx context.Context, job *domain.Job) bool {
	d.stat.Histogram(stats.DispatchQueueLatency_ms).Update(int64(time.Since(job.SubmitTime) / time.Millisecond))

	sctx := ctx
	if d.config.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, d.config.SubmitTimeout)
		defer cancel()
	}
	id, err := d.submitter.Submit(sctx, job)
	if err != nil {
		d.stat.Counter(stats.DispatchSubmitErrCounter).Inc(1)
		log.WithFields(tags.JobFields(job)).WithField(tags.Err, err).Warn("engine refused job, requeueing")
		d.updateStage(ctx, job, domain.StageLacking)
		d.queues.Requeue(job)
		return false
	}

	job.EngineJobID = id.EngineJobID
	if id.AppID != "" {
		job.AppID = id.AppID
	}
	d.updateStage(ctx, job, domain.StageSubmitted)
	d.stat.Counter(stats.DispatchSubmittedCounter).Inc(1)
	log.WithFields(tags.JobFields(job)).Info("job submitted")
	return true
}

func (d *Dispatcher) updateStage(ctx context.Context, job *domain.Job, stage domain.Stage) {
	if err := d.store.UpdateStage(ctx, job.JobID, stage, d.config.NodeAddress); err != nil {
		d.stat.Counter(stats.DispatchStoreErrCounter).Inc(1)
		log.WithFields(tags.JobFields(job)).
			WithFields(log.Fields{tags.Stage: stage, tags.Err: err}).
			Error("could not record job stage")
	}
}
