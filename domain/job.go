// Package domain holds the types shared by the queue, the restart service and
// the dispatcher: the submitted job, its engine-side identity and the stage it
// is persisted under.
package domain

import (
	"strings"
	"time"

	uuid "github.com/nu7hatch/gouuid"
)

// Jobs submitted without a group land here. The group always exists.
const DefaultGroupName = "default"

// Job is one unit of submitted work. A job is owned by exactly one group
// queue at a time; a resubmitted job is queued again as a new entry.
type Job struct {
	// Platform-assigned, unique.
	JobID string
	// Assigned by the execution engine once it accepted the job.
	EngineJobID string
	// Optional resource-manager application id.
	AppID string
	// Tenant/queue label, blank means DefaultGroupName.
	GroupName string
	// Higher is served first within a group.
	Priority int
	// Submission counter stamped when the job enters a group queue.
	// Only used to break priority ties.
	Sequence uint64
	// Incremented by the failure handler on every resubmission.
	RetryCount  int
	MaxRetryNum int

	EngineType string
	// Memory requested from the engine. Raised by the AddMemory restart strategy.
	MemoryMB int

	// When the job last entered a queue.
	SubmitTime time.Time
}

// NewJob creates a job with a fresh uuid id.
func NewJob(group string, priority int) *Job {
	id, err := uuid.NewV4()
	jobID := ""
	if err == nil {
		jobID = id.String()
	}
	return &Job{JobID: jobID, GroupName: group, Priority: priority}
}

// Identifier returns the engine-side identity of the job.
func (j *Job) Identifier() JobIdentifier {
	return JobIdentifier{EngineJobID: j.EngineJobID, AppID: j.AppID, JobID: j.JobID}
}

// Copy returns a shallow copy, enough since Job holds no reference fields.
func (j *Job) Copy() *Job {
	c := *j
	return &c
}

// NormalizeGroup maps a blank or whitespace-only group name to DefaultGroupName.
func NormalizeGroup(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultGroupName
	}
	return name
}

// Before reports whether j is dequeued ahead of o: higher priority first,
// then lower sequence.
func (j *Job) Before(o *Job) bool {
	if j.Priority != o.Priority {
		return j.Priority > o.Priority
	}
	return j.Sequence < o.Sequence
}
