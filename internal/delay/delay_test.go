package delay

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNoneReturnsImmediately(t *testing.T) {
	start := time.Now()
	if err := NewNone().Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Millisecond {
		t.Errorf("None waited %v, expected ~0", elapsed)
	}
}

func TestFixedSleepsExactDuration(t *testing.T) {
	start := time.Now()
	want := 10 * time.Millisecond
	if err := NewFixed(want).Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < want {
		t.Errorf("Fixed slept %v, want at least %v", elapsed, want)
	}
}

func TestUniformBounds(t *testing.T) {
	upper := 5 * time.Millisecond
	p := NewUniform(upper)
	p.rng = func() float64 { return 0.999999 }
	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*upper+5*time.Millisecond {
		t.Errorf("Uniform slept %v, want at most ~%v", elapsed, 2*upper)
	}
}

func TestUniformZeroRNG(t *testing.T) {
	p := NewUniform(5 * time.Millisecond)
	p.rng = func() float64 { return 0 }
	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Millisecond {
		t.Errorf("Uniform with rng=0 waited %v, expected ~0", elapsed)
	}
}

func TestFixedRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewFixed(time.Second).Wait(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestRateLimited(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Millisecond), 1)
	limiter.Allow() // consume the initial burst token
	p := NewRateLimited(limiter)
	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed <= 0 {
		t.Error("expected RateLimited to block for a positive duration")
	}
}
