package util

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle bounds outbound requests twice: at most n in flight, started no
// faster than the token bucket allows.
type Throttle struct {
	slots  chan struct{}
	bucket *rate.Limiter
}

// NewThrottle returns a throttle admitting n concurrent requests at rps
// starts per second. The bucket bursts up to n.
func NewThrottle(n int, rps float64) *Throttle {
	if n < 1 {
		n = 1
	}
	return &Throttle{
		slots:  make(chan struct{}, n),
		bucket: rate.NewLimiter(rate.Limit(rps), n),
	}
}

// Acquire blocks for a free slot and then a token. The returned release
// must be called once the request finishes.
func (t *Throttle) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := t.bucket.Wait(ctx); err != nil {
		<-t.slots
		return nil, err
	}
	return func() { <-t.slots }, nil
}

// InFlight returns the number of held slots.
func (t *Throttle) InFlight() int {
	return len(t.slots)
}
