// Package engine defines what the dispatch core needs from an execution engine.
// Adapters for concrete engines live in subpackages.
package engine

//go:generate mockgen -source=engine.go -package=engine -destination=engine_mock.go

import (
	"context"

	"github.com/twitter/enginedispatch/domain"
)

// LogFetcher retrieves the error output of a failed engine job.
// Implementations own their timeouts and transport retries.
type LogFetcher interface {
	GetJobLog(ctx context.Context, id domain.JobIdentifier) (string, error)
}

// Submitter hands a job to the engine and returns the ids the engine assigned.
type Submitter interface {
	Submit(ctx context.Context, job *domain.Job) (domain.JobIdentifier, error)
}

// Client is an engine that can both run jobs and explain their failures.
type Client interface {
	LogFetcher
	Submitter
}

// FailurePoller is a Client that learns about failed runs by polling the
// engine. Run must be running for failed jobs to appear on Failures().
type FailurePoller interface {
	Client
	Failures() <-chan *domain.Job
	Run(ctx context.Context)
}
