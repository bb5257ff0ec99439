// Package memory is a process-local jobstore.Store.
package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/twitter/enginedispatch/common/stats"
	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/jobstore"
)

type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*jobstore.JobCache
	clock stats.StatsTime
}

var _ jobstore.Store = (*Store)(nil)

func NewStore() *Store {
	return NewStoreWithClock(stats.DefaultStatsTime())
}

func NewStoreWithClock(clock stats.StatsTime) *Store {
	return &Store{jobs: make(map[string]*jobstore.JobCache), clock: clock}
}

func (s *Store) Insert(ctx context.Context, c *jobstore.JobCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	stored := c.Copy()
	stored.GmtCreate = now
	stored.GmtModified = now
	if old, ok := s.jobs[c.JobID]; ok {
		stored.GmtCreate = old.GmtCreate
	}
	s.jobs[c.JobID] = stored
	return nil
}

func (s *Store) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

func (s *Store) GetOne(ctx context.Context, jobID string) (*jobstore.JobCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.Wrapf(jobstore.ErrNotFound, "job %s", jobID)
	}
	return c.Copy(), nil
}

func (s *Store) UpdateStage(ctx context.Context, jobID string, stage domain.Stage, nodeAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.jobs[jobID]
	if !ok {
		return errors.Wrapf(jobstore.ErrNotFound, "job %s", jobID)
	}
	c.Stage = stage
	c.NodeAddress = nodeAddress
	c.GmtModified = s.clock.Now()
	return nil
}

func (s *Store) ListByStage(ctx context.Context, nodeAddress string, stage domain.Stage) ([]*jobstore.JobCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*jobstore.JobCache{}
	for _, c := range s.jobs {
		if c.NodeAddress == nodeAddress && c.Stage == stage {
			out = append(out, c.Copy())
		}
	}
	jobstore.SortByCreate(out)
	return out, nil
}

// Len counts stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
