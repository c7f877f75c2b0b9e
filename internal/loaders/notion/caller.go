package notion

import (
	"context"

	"golang.org/x/time/rate"
)

// Notion's public API allows an average of three requests per second per
// integration. The caller throttles proactively below that and bounds the
// number of in-flight requests so recursive block fetches cannot fan out
// without limit.
const (
	defaultConcurrency = 16
	defaultRate        = 3.0
)

// caller issues API calls with bounded parallelism and proactive
// rate limiting. All loader network traffic funnels through it.
type caller struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

func newCaller(concurrency int, rps float64) *caller {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if rps <= 0 {
		rps = defaultRate
	}
	return &caller{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		slots:   make(chan struct{}, concurrency),
	}
}

// call acquires a concurrency slot, waits for the rate limiter and runs fn.
func (c *caller) call(ctx context.Context, fn func() error) error {
	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.slots }()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return fn()
}
