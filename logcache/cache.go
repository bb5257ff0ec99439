// Package logcache keeps engine error logs for a short time so that repeated
// failure evaluations of the same engine job do not hit the engine again.
//
// Lookups are single-flight per key: concurrent callers asking for a key
// that is being loaded wait for that load and share its result. Only
// successful, non-empty loads are stored; a failed load leaves nothing
// behind and the next lookup calls the loader again.
package logcache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/twitter/enginedispatch/common/stats"
)

const (
	DefaultCapacity = 50
	DefaultTTL      = 5 * time.Minute
)

// ErrEmptyLog is the Result.Err of a load that succeeded but returned no text.
var ErrEmptyLog = emptyLogError{}

type emptyLogError struct{}

func (emptyLogError) Error() string { return "logcache: loader returned an empty log" }

// Loader fetches the text for a key. It is called at most once per key at a time.
type Loader func() (string, error)

// Result describes how a lookup was answered.
type Result struct {
	Text string
	// Answered from a fresh entry without loading.
	Cached bool
	// Attached to a load started by another caller.
	Shared bool
	// Non-nil when the load failed or returned no text. Text is then empty.
	Err error
}

// Degraded reports whether no text could be obtained.
func (r Result) Degraded() bool {
	return r.Err != nil
}

type entry struct {
	text    string
	written time.Time
}

// Cache is a size and time bounded map from engine job id to error log.
type Cache struct {
	entries *lru.Cache
	flight  singleflight.Group
	ttl     time.Duration
	clock   stats.StatsTime
	stat    stats.StatsReceiver
}

// New creates a cache holding at most capacity entries for ttl each.
// Non-positive arguments fall back to DefaultCapacity and DefaultTTL.
func New(capacity int, ttl time.Duration, stat stats.StatsReceiver) *Cache {
	return NewWithClock(capacity, ttl, stat, stats.DefaultStatsTime())
}

// NewWithClock is New with an explicit clock, for tests.
func NewWithClock(capacity int, ttl time.Duration, stat stats.StatsReceiver, clock stats.StatsTime) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New(capacity)
	return &Cache{
		entries: entries,
		ttl:     ttl,
		clock:   clock,
		stat:    stat.Scope("logcache"),
	}
}

// GetOrLoad returns the fresh entry for key or loads it with loader.
func (c *Cache) GetOrLoad(key string, loader Loader) Result {
	if text, ok := c.get(key); ok {
		c.stat.Counter(stats.LogCacheHitCounter).Inc(1)
		return Result{Text: text, Cached: true}
	}
	c.stat.Counter(stats.LogCacheMissCounter).Inc(1)

	v, err, shared := c.flight.Do(key, func() (interface{}, error) {
		// A load for this key may have finished between our miss and Do.
		if text, ok := c.get(key); ok {
			return text, nil
		}
		c.stat.Counter(stats.LogCacheLoadCounter).Inc(1)
		defer c.stat.Latency(stats.LogCacheLoadLatency_ms).Time().Stop()

		text, err := loader()
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", ErrEmptyLog
		}
		c.entries.Add(key, entry{text: text, written: c.clock.Now()})
		return text, nil
	})
	if shared {
		c.stat.Counter(stats.LogCacheSharedLoadCounter).Inc(1)
	}
	if err != nil {
		c.stat.Counter(stats.LogCacheLoadFailureCounter).Inc(1)
		return Result{Shared: shared, Err: err}
	}
	return Result{Text: v.(string), Shared: shared}
}

// get returns the entry for key if it is younger than the ttl, dropping it otherwise.
func (c *Cache) get(key string) (string, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return "", false
	}
	e := v.(entry)
	if c.clock.Since(e.written) >= c.ttl {
		c.entries.Remove(key)
		c.stat.Counter(stats.LogCacheExpiredCounter).Inc(1)
		return "", false
	}
	return e.text, true
}

// Len counts stored entries, including expired ones not yet read.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}
