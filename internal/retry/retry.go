// Package retry implements the fixed-delay (non-exponential) retry policy
// spec.md binds on Command steps: up to N additional attempts separated by
// a constant delay, using github.com/cenkalti/backoff/v5's constant
// back-off rather than a hand-rolled sleep loop — the pack carries
// cenkalti/backoff as a transitive dependency (dagu-org-dagu, kbukum-gokit)
// and its ConstantBackOff is the direct library match for this policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes a fixed-delay retry: up to Attempts additional tries
// (so Attempts=0 means "run once, never retry") separated by Delay.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Do runs op, retrying up to Policy.Attempts additional times with a fixed
// delay between attempts, stopping early on context cancellation.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		return op(ctx)
	}

	wrapped := func() (struct{}, error) {
		return struct{}{}, op(ctx)
	}

	_, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(p.Attempts+1)),
	)
	return err
}
