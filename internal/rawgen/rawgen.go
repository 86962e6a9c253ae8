// Package rawgen defines the unbounded, single-consumer source of base
// operations that sits beneath the generator algebra, plus a reference
// register-workload implementation.
package rawgen

import "jepsengo/internal/op"

// RawGenerator is an infinite, single-consumer source of Op values. It is
// a pluggable trait: callers supply their own RawGenerator to vary the
// workload shape without touching the generator algebra above it.
type RawGenerator interface {
	// Next produces the next Op. It never signals end-of-stream; callers
	// that need a finite prefix use NextN or the generator's Take.
	Next() op.Op
}

// Batcher is an optional capability a RawGenerator may implement to
// supply many ops in one call more efficiently than repeated Next calls
// (for example, by refilling an internal cache in bulk). See
// RegisterWorkload for the reference implementation.
type Batcher interface {
	NextN(n int) []op.Op
}

// NextN returns the next n ops from g, using g's Batcher capability if
// present and falling back to repeated Next calls otherwise.
func NextN(g RawGenerator, n int) []op.Op {
	if b, ok := g.(Batcher); ok {
		return b.NextN(n)
	}
	out := make([]op.Op, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}
