package domain

import "fmt"

// JobIdentifier is the lookup key handed to the engine client. The core
// treats it as opaque.
type JobIdentifier struct {
	EngineJobID string
	AppID       string
	JobID       string
}

func (id JobIdentifier) String() string {
	return fmt.Sprintf("JobIdentifier{EngineJobID: %s, AppID: %s, JobID: %s}", id.EngineJobID, id.AppID, id.JobID)
}
