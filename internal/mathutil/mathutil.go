// Package mathutil holds small, pure helpers shared by the generator
// algebra and the nemesis calculator: a resettable budget counter and
// the wraparound-add used to pick ring-neighbors modulo cluster size.
package mathutil

import "errors"

// ErrCounterOver is returned by Counter.Count when the counter has
// already reached zero.
var ErrCounterOver = errors.New("mathutil: counter over")

// Counter is a resettable remaining-budget counter, used by
// GeneratorGroup's RoundRobin strategy to track each child's emission
// quota.
type Counter struct {
	cur, total int
}

// NewCounter creates a Counter starting at total.
func NewCounter(total int) *Counter {
	return &Counter{cur: total, total: total}
}

// Set replaces both the total and the current count.
func (c *Counter) Set(total int) {
	c.total = total
	c.cur = total
}

// Cur returns the remaining count.
func (c *Counter) Cur() int { return c.cur }

// Total returns the configured total.
func (c *Counter) Total() int { return c.total }

// Count decrements the counter and returns the new remaining count, or
// ErrCounterOver if it was already at zero.
func (c *Counter) Count() (int, error) {
	if c.cur == 0 {
		return 0, ErrCounterOver
	}
	c.cur--
	return c.cur, nil
}

// Over reports whether the counter has reached zero.
func (c *Counter) Over() bool { return c.cur == 0 }

// Reset restores the counter to its total.
func (c *Counter) Reset() { c.cur = c.total }

// OverflowingAddRange returns x + k folded into [lo, hi): if x is
// already in range, the result is ((x-lo)+k) mod (hi-lo) + lo; if x is
// outside the range, x is first folded to lo (consuming one unit of k)
// before applying the same formula. Used by the partition-majorities-ring
// calculation to pick each server's reachable neighbor set modulo
// cluster size.
func OverflowingAddRange(x, k, lo, hi uint64) uint64 {
	width := hi - lo
	if x < lo || x >= hi {
		if k == 0 {
			return lo
		}
		k--
		x = lo
	}
	return (x-lo+k)%width + lo
}
