package dispatcher

import (
	"sync"

	"golang.org/x/time/rate"
)

// GroupLimit caps how fast jobs of one group are handed to the engine.
type GroupLimit struct {
	Group string
	// Jobs per second. Zero disables the limit.
	RateLimit float64
	// Token bucket size, 1 when RateLimit is set and this is not.
	RateBurst int
}

// groupLimiter holds one token bucket per limited group. Groups without
// their own GroupLimit get a bucket from the default limit, if it is set.
type groupLimiter struct {
	mu       sync.Mutex
	limits   map[string]GroupLimit
	def      GroupLimit
	limiters map[string]*rate.Limiter
}

func newGroupLimiter(limits []GroupLimit, def GroupLimit) *groupLimiter {
	l := &groupLimiter{
		limits:   make(map[string]GroupLimit, len(limits)),
		def:      def,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, gl := range limits {
		l.limits[gl.Group] = gl
	}
	return l
}

// allow takes a token for group, reporting false if the group is over its rate.
func (l *groupLimiter) allow(group string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[group]
	if !ok {
		gl, ok := l.limits[group]
		if !ok {
			gl = l.def
		}
		lim = newLimiter(gl)
		l.limiters[group] = lim
	}
	return lim == nil || lim.Allow()
}

func newLimiter(gl GroupLimit) *rate.Limiter {
	if gl.RateLimit <= 0 {
		return nil
	}
	burst := gl.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(gl.RateLimit), burst)
}
