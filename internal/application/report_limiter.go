package application

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// reportLimiter keeps one token bucket per reporter. A nil limiter allows
// everything.
type reportLimiter struct {
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
	byUser map[int]*rate.Limiter
}

func newReportLimiter(cfg ReportRateConfig) *reportLimiter {
	if cfg.PerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &reportLimiter{
		limit:  rate.Limit(cfg.PerMinute / 60),
		burst:  burst,
		byUser: make(map[int]*rate.Limiter),
	}
}

func (r *reportLimiter) allow(userID int, now time.Time) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	lim, ok := r.byUser[userID]
	if !ok {
		lim = rate.NewLimiter(r.limit, r.burst)
		r.byUser[userID] = lim
	}
	r.mu.Unlock()
	return lim.AllowN(now, 1)
}
