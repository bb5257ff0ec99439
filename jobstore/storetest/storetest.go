// Package storetest holds the behavior every jobstore.Store must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/jobstore"
)

// Ticker lets a suite separate record creation times for stores with an injectable clock.
type Ticker func()

// Run checks s against the Store contract. s must start empty. tick, when
// non-nil, is called between inserts that must get distinct create times.
func Run(t *testing.T, s jobstore.Store, tick Ticker) {
	if tick == nil {
		tick = func() {}
	}
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		c := record(t, "rt-1", domain.StageDB, "node-a")
		require.NoError(t, s.Insert(ctx, c))

		got, err := s.GetOne(ctx, "rt-1")
		require.NoError(t, err)
		assert.Equal(t, "rt-1", got.JobID)
		assert.Equal(t, domain.StageDB, got.Stage)
		assert.Equal(t, "node-a", got.NodeAddress)
		assert.Equal(t, "flink", got.EngineType)
		assert.False(t, got.GmtCreate.IsZero())
		job, err := got.Job()
		require.NoError(t, err)
		assert.Equal(t, "etl", job.GroupName)

		require.NoError(t, s.Delete(ctx, "rt-1"))
		_, err = s.GetOne(ctx, "rt-1")
		assert.True(t, jobstore.IsNotFound(err))
	})

	t.Run("MissingJob", func(t *testing.T) {
		_, err := s.GetOne(ctx, "nope")
		assert.True(t, jobstore.IsNotFound(err))
		assert.True(t, jobstore.IsNotFound(s.UpdateStage(ctx, "nope", domain.StageLacking, "node-a")))
		assert.NoError(t, s.Delete(ctx, "nope"))
	})

	t.Run("UpdateStageMovesIndex", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, record(t, "us-1", domain.StagePriority, "node-b")))
		require.NoError(t, s.UpdateStage(ctx, "us-1", domain.StageSubmitted, "node-c"))

		got, err := s.GetOne(ctx, "us-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StageSubmitted, got.Stage)
		assert.Equal(t, "node-c", got.NodeAddress)

		assert.Empty(t, list(t, s, "node-b", domain.StagePriority))
		assert.Equal(t, []string{"us-1"}, list(t, s, "node-c", domain.StageSubmitted))
		require.NoError(t, s.Delete(ctx, "us-1"))
		assert.Empty(t, list(t, s, "node-c", domain.StageSubmitted))
	})

	t.Run("ListByStageOldestFirst", func(t *testing.T) {
		for _, id := range []string{"ls-a", "ls-b", "ls-c"} {
			require.NoError(t, s.Insert(ctx, record(t, id, domain.StageLacking, "node-d")))
			tick()
		}
		require.NoError(t, s.Insert(ctx, record(t, "ls-other", domain.StagePriority, "node-d")))

		assert.Equal(t, []string{"ls-a", "ls-b", "ls-c"}, list(t, s, "node-d", domain.StageLacking))
		assert.Equal(t, []string{"ls-other"}, list(t, s, "node-d", domain.StagePriority))
		assert.Empty(t, list(t, s, "node-e", domain.StageLacking))
	})

	t.Run("InsertReplaces", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, record(t, "ir-1", domain.StagePriority, "node-f")))
		first, err := s.GetOne(ctx, "ir-1")
		require.NoError(t, err)
		tick()

		again := record(t, "ir-1", domain.StageLacking, "node-f")
		again.JobInfo = `{"JobID":"ir-1","MemoryMB":2048}`
		require.NoError(t, s.Insert(ctx, again))

		got, err := s.GetOne(ctx, "ir-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StageLacking, got.Stage)
		assert.True(t, first.GmtCreate.Equal(got.GmtCreate))
		job, err := got.Job()
		require.NoError(t, err)
		assert.Equal(t, 2048, job.MemoryMB)
		assert.Empty(t, list(t, s, "node-f", domain.StagePriority))
		assert.Equal(t, []string{"ir-1"}, list(t, s, "node-f", domain.StageLacking))
	})
}

func record(t *testing.T, jobID string, stage domain.Stage, node string) *jobstore.JobCache {
	c, err := jobstore.NewJobCache(&domain.Job{JobID: jobID, GroupName: "etl", EngineType: "flink"}, stage, node)
	require.NoError(t, err)
	return c
}

func list(t *testing.T, s jobstore.Store, node string, stage domain.Stage) []string {
	cs, err := s.ListByStage(context.Background(), node, stage)
	require.NoError(t, err)
	ids := []string{}
	for _, c := range cs {
		ids = append(ids, c.JobID)
	}
	return ids
}
