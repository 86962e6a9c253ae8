// Package delay implements per-element pacing for the generator algebra.
package delay

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Kind discriminates the pacing strategy.
type Kind int

const (
	// None sleeps for zero duration.
	None Kind = iota
	// Fixed sleeps for exactly Duration.
	Fixed
	// Uniform sleeps for a uniform-random value in [0, 2*Upper).
	Uniform
	// RateLimited blocks on a shared token-bucket limiter instead of
	// sleeping a fixed or random duration. This supplements the
	// None/Fixed/Uniform policies with a cross-generator global rate cap.
	RateLimited
)

// Policy is a per-element delay strategy.
type Policy struct {
	kind    Kind
	d       time.Duration // Fixed: exact sleep; Uniform: upper bound
	limiter *rate.Limiter // RateLimited only
	rng     func() float64
}

// NewNone returns the zero-delay policy.
func NewNone() Policy { return Policy{kind: None} }

// NewFixed returns a policy that always sleeps exactly d.
func NewFixed(d time.Duration) Policy { return Policy{kind: Fixed, d: d} }

// NewUniform returns a policy that sleeps a uniform random value in
// [0, 2*upper).
func NewUniform(upper time.Duration) Policy {
	return Policy{kind: Uniform, d: upper, rng: rand.Float64}
}

// NewRateLimited returns a policy backed by a shared rate.Limiter: Wait
// blocks until the limiter grants a token, rather than sleeping a fixed
// duration. Multiple Policy values built from the same limiter impose a
// single combined rate across however many generators use them.
func NewRateLimited(limiter *rate.Limiter) Policy {
	return Policy{kind: RateLimited, limiter: limiter}
}

// Kind reports the policy's discriminant.
func (p Policy) Kind() Kind { return p.kind }

// Wait blocks for the duration prescribed by the policy, or until ctx is
// cancelled.
func (p Policy) Wait(ctx context.Context) error {
	switch p.kind {
	case None:
		return nil
	case Fixed:
		return sleep(ctx, p.d)
	case Uniform:
		rng := p.rng
		if rng == nil {
			rng = rand.Float64
		}
		d := time.Duration(rng() * float64(2*p.d))
		return sleep(ctx, d)
	case RateLimited:
		return p.limiter.Wait(ctx)
	default:
		return nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
