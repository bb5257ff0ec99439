package logcache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/twitter/enginedispatch/common/stats"
)

func constLoader(calls *int32, text string) Loader {
	return func() (string, error) {
		atomic.AddInt32(calls, 1)
		return text, nil
	}
}

func TestGetOrLoad_HitSkipsLoader(t *testing.T) {
	c := New(10, time.Minute, nil)
	var calls int32

	r := c.GetOrLoad("e1", constLoader(&calls, "boom"))
	assert.Equal(t, "boom", r.Text)
	assert.False(t, r.Cached)
	assert.False(t, r.Degraded())

	r = c.GetOrLoad("e1", constLoader(&calls, "other"))
	assert.Equal(t, "boom", r.Text)
	assert.True(t, r.Cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrLoad_ConcurrentCallersShareOneLoad(t *testing.T) {
	stat := stats.DefaultStatsReceiver()
	c := New(10, time.Minute, stat)

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	loader := func() (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return "shared log", nil
	}

	const callers = 8
	results := make([]Result, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = c.GetOrLoad("e1", loader)
	}()
	<-started
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetOrLoad("e1", loader)
		}(i)
	}
	// Give the other callers time to attach to the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i, r := range results {
		assert.Equal(t, "shared log", r.Text, "caller %d", i)
	}
	stats.VerifyStats("singleflight", stat, t, map[string]stats.Rule{
		"logcache/" + stats.LogCacheLoadCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestGetOrLoad_DifferentKeysDoNotBlock(t *testing.T) {
	c := New(10, time.Minute, nil)
	release := make(chan struct{})
	defer close(release)

	go c.GetOrLoad("slow", func() (string, error) {
		<-release
		return "slow log", nil
	})

	done := make(chan Result)
	go func() {
		done <- c.GetOrLoad("fast", func() (string, error) { return "fast log", nil })
	}()
	select {
	case r := <-done:
		assert.Equal(t, "fast log", r.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("a load for one key blocked a lookup for another")
	}
}

func TestGetOrLoad_FailureIsNotCached(t *testing.T) {
	stat := stats.DefaultStatsReceiver()
	c := New(10, time.Minute, stat)
	var calls int32
	failing := func() (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("connection refused")
	}

	r := c.GetOrLoad("e1", failing)
	assert.True(t, r.Degraded())
	assert.Equal(t, "", r.Text)
	assert.Equal(t, 0, c.Len())

	r = c.GetOrLoad("e1", constLoader(&calls, "recovered"))
	assert.False(t, r.Degraded())
	assert.Equal(t, "recovered", r.Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	stats.VerifyStats("failure", stat, t, map[string]stats.Rule{
		"logcache/" + stats.LogCacheLoadFailureCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestGetOrLoad_EmptyIsNotCached(t *testing.T) {
	c := New(10, time.Minute, nil)
	var calls int32

	r := c.GetOrLoad("e1", constLoader(&calls, ""))
	assert.Equal(t, ErrEmptyLog, r.Err)
	assert.Equal(t, 0, c.Len())

	c.GetOrLoad("e1", constLoader(&calls, ""))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrLoad_ExpiredEntryReloads(t *testing.T) {
	clock := stats.NewFakeTime(time.Unix(1000, 0), nil)
	ttl := 5 * time.Minute
	c := NewWithClock(10, ttl, nil, clock)
	var calls int32

	c.GetOrLoad("e1", constLoader(&calls, "first"))
	clock.Advance(ttl - time.Second)
	r := c.GetOrLoad("e1", constLoader(&calls, "second"))
	assert.True(t, r.Cached)
	assert.Equal(t, "first", r.Text)

	clock.Advance(time.Second + time.Nanosecond)
	r = c.GetOrLoad("e1", constLoader(&calls, "second"))
	assert.False(t, r.Cached)
	assert.Equal(t, "second", r.Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrLoad_CapacityBounded(t *testing.T) {
	c := New(3, time.Minute, nil)
	var calls int32
	for i := 0; i < 5; i++ {
		c.GetOrLoad(fmt.Sprintf("e%d", i), constLoader(&calls, "log"))
		assert.True(t, c.Len() <= 3)
	}

	// The oldest key was evicted and loads again.
	r := c.GetOrLoad("e0", constLoader(&calls, "log"))
	assert.False(t, r.Cached)
	r = c.GetOrLoad("e4", constLoader(&calls, "log"))
	assert.True(t, r.Cached)
}

func TestDefaults(t *testing.T) {
	c := New(0, 0, nil)
	assert.Equal(t, DefaultTTL, c.ttl)
	c.Purge()
	assert.Equal(t, 0, c.Len())
}
