// Package fake is an in-memory engine for tests and the demo binary.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/engine"
)

// Script decides the fate of a submitted job. A non-empty log marks the job
// as failed with that error text.
type Script func(job *domain.Job) (failureLog string)

// Engine accepts every submission, assigning engine ids "fake-<n>". Jobs
// failed by the script are published on Failures().
type Engine struct {
	mu         sync.Mutex
	next       int
	script     Script
	submitted  []*domain.Job
	logs       map[string]string
	submitErrs []error
	fetchErr   error
	fetches    int
	failures   chan *domain.Job
}

var _ engine.Client = (*Engine)(nil)

// NewEngine creates an engine; a nil script never fails a job. Up to
// failureBuffer failed jobs are held until read from Failures().
func NewEngine(script Script, failureBuffer int) *Engine {
	if failureBuffer <= 0 {
		failureBuffer = 1
	}
	return &Engine{
		script:   script,
		logs:     make(map[string]string),
		failures: make(chan *domain.Job, failureBuffer),
	}
}

func (e *Engine) Submit(ctx context.Context, job *domain.Job) (domain.JobIdentifier, error) {
	e.mu.Lock()
	if len(e.submitErrs) > 0 {
		err := e.submitErrs[0]
		e.submitErrs = e.submitErrs[1:]
		e.mu.Unlock()
		return domain.JobIdentifier{}, err
	}
	e.next++
	id := domain.JobIdentifier{EngineJobID: fmt.Sprintf("fake-%d", e.next), AppID: job.AppID, JobID: job.JobID}
	accepted := job.Copy()
	accepted.EngineJobID = id.EngineJobID
	e.submitted = append(e.submitted, accepted)
	failureLog := ""
	if e.script != nil {
		failureLog = e.script(accepted)
	}
	if failureLog != "" {
		e.logs[id.EngineJobID] = failureLog
	}
	e.mu.Unlock()

	if failureLog != "" {
		select {
		case e.failures <- accepted.Copy():
		case <-ctx.Done():
			return id, ctx.Err()
		}
	}
	return id, nil
}

func (e *Engine) GetJobLog(ctx context.Context, id domain.JobIdentifier) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetches++
	if e.fetchErr != nil {
		return "", e.fetchErr
	}
	text, ok := e.logs[id.EngineJobID]
	if !ok {
		return "", fmt.Errorf("unknown engine job %q", id.EngineJobID)
	}
	return text, nil
}

// Failures delivers the jobs the script failed, with their engine ids set.
func (e *Engine) Failures() <-chan *domain.Job {
	return e.failures
}

// SetLog sets the error text returned for an engine job.
func (e *Engine) SetLog(engineJobID, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logs[engineJobID] = text
}

// FailNextSubmit makes the next Submit call return err.
func (e *Engine) FailNextSubmit(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitErrs = append(e.submitErrs, err)
}

// FailLogFetches makes GetJobLog return err until called again with nil.
func (e *Engine) FailLogFetches(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetchErr = err
}

// Submitted returns copies of the accepted jobs in submission order.
func (e *Engine) Submitted() []*domain.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.Job, 0, len(e.submitted))
	for _, j := range e.submitted {
		out = append(out, j.Copy())
	}
	return out
}

// LogFetches counts GetJobLog calls.
func (e *Engine) LogFetches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetches
}
