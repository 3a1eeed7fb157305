package crawler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// politeness spaces requests to the same origin at least one delay apart.
// The first request to an origin is not delayed.
type politeness struct {
	limiters map[string]*rate.Limiter
}

func newPoliteness() *politeness {
	return &politeness{limiters: make(map[string]*rate.Limiter)}
}

// wait blocks until a request to origin may be sent or ctx is done.
// The origin's spacing is set to delay before waiting, so a delay learned
// from robots.txt applies to the request right after it.
func (p *politeness) wait(ctx context.Context, origin string, delay time.Duration) error {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	limiter, ok := p.limiters[origin]
	if !ok {
		limiter = rate.NewLimiter(limit, 1)
		p.limiters[origin] = limiter
	} else if limiter.Limit() != limit {
		limiter.SetLimit(limit)
	}
	return limiter.Wait(ctx)
}
