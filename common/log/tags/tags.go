// Package tags holds the structured logging keys shared by every package,
// so that one job can be followed through queueing, dispatch and recovery.
package tags

import (
	log "github.com/sirupsen/logrus"

	"github.com/twitter/enginedispatch/domain"
)

const (
	JobID       = "jobID"
	EngineJobID = "engineJobID"
	AppID       = "appID"
	Group       = "group"
	Priority    = "priority"
	RetryCount  = "retryCount"
	Strategy    = "strategy"
	Stage       = "stage"
	Err         = "err"
)

// JobFields returns the log fields identifying job.
func JobFields(job *domain.Job) log.Fields {
	return log.Fields{
		JobID:       job.JobID,
		EngineJobID: job.EngineJobID,
		Group:       job.GroupName,
		Priority:    job.Priority,
		RetryCount:  job.RetryCount,
	}
}

// IdentifierFields returns the log fields identifying an engine-side job.
func IdentifierFields(id domain.JobIdentifier) log.Fields {
	return log.Fields{
		JobID:       id.JobID,
		EngineJobID: id.EngineJobID,
		AppID:       id.AppID,
	}
}
