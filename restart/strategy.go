package restart

import (
	"github.com/twitter/enginedispatch/domain"
)

// Strategy is the action to take on a failed job before resubmitting it.
type Strategy int

const (
	// Not eligible for resubmission, whatever the retry budget.
	StrategyNone Strategy = iota
	// Resubmit with more memory.
	StrategyAddMemory
	// Drop the engine-side state of the failed run and resubmit as is.
	StrategyUndo
)

func (s Strategy) String() string {
	switch s {
	case StrategyAddMemory:
		return "AddMemory"
	case StrategyUndo:
		return "Undo"
	default:
		return "None"
	}
}

func (s Strategy) Restartable() bool {
	return s == StrategyAddMemory || s == StrategyUndo
}

// ApplyOptions bounds the changes a strategy makes to a job.
type ApplyOptions struct {
	// Memory added per AddMemory restart.
	MemoryStepMB int
	// Upper bound for MemoryMB, 0 for none.
	MaxMemoryMB int
}

var DefaultApplyOptions = ApplyOptions{MemoryStepMB: 512, MaxMemoryMB: 16384}

// Apply rewrites job's resubmission parameters. StrategyNone leaves it untouched.
func (s Strategy) Apply(job *domain.Job, opts ApplyOptions) {
	switch s {
	case StrategyAddMemory:
		job.MemoryMB += opts.MemoryStepMB
		if opts.MaxMemoryMB > 0 && job.MemoryMB > opts.MaxMemoryMB {
			job.MemoryMB = opts.MaxMemoryMB
		}
		job.EngineJobID = ""
		job.AppID = ""
	case StrategyUndo:
		job.EngineJobID = ""
		job.AppID = ""
	}
}
