// Package jobstore persists the dispatch stage of every job that has not
// finished yet, so a restarted dispatcher node can find the jobs it owned.
package jobstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/twitter/enginedispatch/domain"
)

var ErrNotFound = errors.New("jobstore: job not found")

// IsNotFound reports whether err, possibly wrapped, is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// JobCache is the stored record of one job.
type JobCache struct {
	JobID      string
	EngineType string
	Stage      domain.Stage
	// Dispatcher node that owns the job.
	NodeAddress string
	// JSON encoded domain.Job as of the last Insert.
	JobInfo string
	// Set by the store.
	GmtCreate   time.Time
	GmtModified time.Time
}

// NewJobCache builds the record for job at stage, owned by nodeAddress.
func NewJobCache(job *domain.Job, stage domain.Stage, nodeAddress string) (*JobCache, error) {
	info, err := json.Marshal(job)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding job %s", job.JobID)
	}
	return &JobCache{
		JobID:       job.JobID,
		EngineType:  job.EngineType,
		Stage:       stage,
		NodeAddress: nodeAddress,
		JobInfo:     string(info),
	}, nil
}

// Job decodes JobInfo.
func (c *JobCache) Job() (*domain.Job, error) {
	job := &domain.Job{}
	if err := json.Unmarshal([]byte(c.JobInfo), job); err != nil {
		return nil, errors.Wrapf(err, "decoding job %s", c.JobID)
	}
	return job, nil
}

func (c *JobCache) Copy() *JobCache {
	out := *c
	return &out
}

// Store is the job cache table.
type Store interface {
	// Insert adds c, replacing any record with the same JobID. A replaced
	// record keeps its GmtCreate.
	Insert(ctx context.Context, c *JobCache) error
	// Delete removes the record for jobID. Deleting a missing job is not an error.
	Delete(ctx context.Context, jobID string) error
	// GetOne returns ErrNotFound for an unknown jobID.
	GetOne(ctx context.Context, jobID string) (*JobCache, error)
	// UpdateStage moves a job to stage under nodeAddress. Returns ErrNotFound for an unknown jobID.
	UpdateStage(ctx context.Context, jobID string, stage domain.Stage, nodeAddress string) error
	// ListByStage returns the jobs nodeAddress owns at stage, oldest first.
	ListByStage(ctx context.Context, nodeAddress string, stage domain.Stage) ([]*JobCache, error)
}

// SortByCreate orders records by GmtCreate, then JobID.
func SortByCreate(cs []*JobCache) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].GmtCreate.Equal(cs[j].GmtCreate) {
			return cs[i].GmtCreate.Before(cs[j].GmtCreate)
		}
		return cs[i].JobID < cs[j].JobID
	})
}
