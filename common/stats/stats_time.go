package stats

import (
	"sync"
	"time"
)

// wraps the stdlib time.Ticker struct, allows for mocking in tests
type StatsTicker interface {
	C() <-chan time.Time
	Stop()
}

type statsTicker struct {
	*time.Ticker
}

func (s *statsTicker) C() <-chan time.Time { return s.Ticker.C }

func NewStatsTicker(dur time.Duration) StatsTicker {
	return &statsTicker{time.NewTicker(dur)}
}

// Defines the calls we make to the stdlib time package. Allows for overriding in tests.
// Also used as the clock of the failure log cache.
type StatsTime interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTicker(d time.Duration) StatsTicker
}

type defaultStatsTime struct{}

func (defaultStatsTime) Now() time.Time                        { return time.Now() }
func (defaultStatsTime) Since(t time.Time) time.Duration       { return time.Since(t) }
func (defaultStatsTime) NewTicker(d time.Duration) StatsTicker { return NewStatsTicker(d) }

var stdlibStatsTime = defaultStatsTime{}

// Returns a StatsTime instance backed by the stdlib 'time' package
func DefaultStatsTime() StatsTime { return stdlibStatsTime }

// FakeTime is a manually advanced clock for tests. Tickers it creates fire
// only when the test sends on the channel given to NewFakeTime.
type FakeTime struct {
	mu  sync.Mutex
	now time.Time
	ch  <-chan time.Time
}

type fakeTicker struct {
	ch <-chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

func NewFakeTime(now time.Time, ch <-chan time.Time) *FakeTime {
	return &FakeTime{now: now, ch: ch}
}

func (f *FakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *FakeTime) Since(t time.Time) time.Duration { return f.Now().Sub(t) }

func (f *FakeTime) NewTicker(time.Duration) StatsTicker { return &fakeTicker{ch: f.ch} }

// Advance moves the clock forward by d.
func (f *FakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
