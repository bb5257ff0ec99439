package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/jobstore"
	"github.com/twitter/enginedispatch/jobstore/storetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	s := NewStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestStore(t *testing.T) {
	s, _ := newTestStore(t)
	storetest.Run(t, s, func() { time.Sleep(2 * time.Millisecond) })
}

func TestKeyLayout(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	c, err := jobstore.NewJobCache(&domain.Job{JobID: "j1"}, domain.StagePriority, "10.0.0.1:8090")
	assert.NoError(t, err)
	assert.NoError(t, s.Insert(ctx, c))

	assert.True(t, mr.Exists("enginedispatch:job:j1"))
	assert.Equal(t, "2", mr.HGet("enginedispatch:job:j1", "stage"))
	members, err := mr.Members("enginedispatch:stage:10.0.0.1:8090:PRIORITY")
	assert.NoError(t, err)
	assert.Equal(t, []string{"j1"}, members)
}

func TestListSkipsStaleIndexEntries(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	mr.SAdd("enginedispatch:stage:n:LACKING", "ghost")

	cs, err := s.ListByStage(ctx, "n", domain.StageLacking)
	assert.NoError(t, err)
	assert.Empty(t, cs)
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), "redis://"+mr.Addr()+"/0", "test:")
	assert.NoError(t, err)
	defer s.Close()

	_, err = s.GetOne(context.Background(), "missing")
	assert.True(t, jobstore.IsNotFound(err))

	_, err = Open(context.Background(), "not a url", "")
	assert.Error(t, err)
}
