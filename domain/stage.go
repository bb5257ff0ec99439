package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Stage is the persisted position of a job in the dispatch pipeline.
type Stage int

const (
	// Accepted and written to the store, not yet queued.
	StageDB Stage = iota + 1
	// Waiting in a group queue.
	StagePriority
	// The engine refused the submission for lack of resources, waiting to be retried.
	StageLacking
	// Handed to the engine.
	StageSubmitted
)

func (s Stage) String() string {
	switch s {
	case StageDB:
		return "DB"
	case StagePriority:
		return "PRIORITY"
	case StageLacking:
		return "LACKING"
	case StageSubmitted:
		return "SUBMITTED"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// ParseStage is the inverse of Stage.String.
func ParseStage(s string) (Stage, error) {
	for _, stage := range []Stage{StageDB, StagePriority, StageLacking, StageSubmitted} {
		if stage.String() == s {
			return stage, nil
		}
	}
	return 0, errors.Errorf("unknown stage %q", s)
}
