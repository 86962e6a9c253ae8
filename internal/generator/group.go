package generator

import (
	"context"
	"math/rand/v2"
	"sync"

	"jepsengo/internal/global"
	"jepsengo/internal/mathutil"
)

// Strategy selects how a Group picks among its live children.
type Strategy int

const (
	// Chain always selects the current child until it is exhausted, then
	// advances to the next; equivalent to concatenation.
	Chain Strategy = iota
	// RoundRobin advances to the next child once the current child's
	// quota is exhausted, resetting the quota.
	RoundRobin
	// Random picks a uniformly random index among live children on every
	// selection.
	Random
)

// ChildSpec describes one child generator and, for RoundRobin, its
// emission quota before rotation. A non-positive Quota behaves as 1 (the
// child rotates after every single emission), matching plain
// round-robin-without-quotas.
type ChildSpec[T any] struct {
	Gen   *Generator[T]
	Quota int
}

type groupChild[T any] struct {
	gen   *Generator[T]
	quota *mathutil.Counter
}

// Group multiplexes several Generators behind one Strategy. A live child
// is one that has not yet signalled end-of-stream; an exhausted child is
// removed lazily, the first time its end-of-stream is observed.
type Group[T any] struct {
	mu       sync.Mutex
	strategy Strategy
	children []*groupChild[T]
	cursor   int
	rng      *rand.Rand
}

// NewGroup builds a Group over specs under strategy, seeded
// deterministically for the Random strategy's selection.
func NewGroup[T any](strategy Strategy, seed uint64, specs ...ChildSpec[T]) *Group[T] {
	children := make([]*groupChild[T], len(specs))
	for i, s := range specs {
		quota := s.Quota
		if quota <= 0 {
			quota = 1
		}
		children[i] = &groupChild[T]{gen: s.Gen, quota: mathutil.NewCounter(quota)}
	}
	return &Group[T]{
		strategy: strategy,
		children: children,
		rng:      rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d)),
	}
}

// NextWithID pulls the next (item, id) from the group's currently
// selected live child, advancing selection per Strategy. It returns
// (nil, 0, nil) once every child has been observed exhausted.
func (grp *Group[T]) NextWithID(ctx context.Context) (*T, uint64, error) {
	grp.mu.Lock()
	defer grp.mu.Unlock()

	for {
		if len(grp.children) == 0 {
			return nil, 0, nil
		}

		idx := grp.selectIndexLocked()
		child := grp.children[idx]

		item, id, err := child.gen.NextWithID(ctx)
		if err != nil {
			return nil, 0, err
		}
		if item == nil {
			grp.removeLocked(idx)
			continue
		}

		grp.advanceLocked(idx)
		return item, id, nil
	}
}

func (grp *Group[T]) selectIndexLocked() int {
	if grp.strategy == Random {
		return grp.rng.IntN(len(grp.children))
	}
	if grp.cursor >= len(grp.children) {
		grp.cursor = 0
	}
	return grp.cursor
}

func (grp *Group[T]) advanceLocked(idx int) {
	switch grp.strategy {
	case RoundRobin:
		c := grp.children[idx]
		_, _ = c.quota.Count()
		if c.quota.Over() {
			c.quota.Reset()
			grp.cursor = (idx + 1) % len(grp.children)
		}
	case Chain, Random:
		// Chain stays on idx until exhaustion; Random re-picks every call.
	}
}

func (grp *Group[T]) removeLocked(idx int) {
	grp.children = append(grp.children[:idx], grp.children[idx+1:]...)
	if len(grp.children) == 0 {
		grp.cursor = 0
		return
	}
	if grp.strategy == Random {
		return
	}
	if grp.cursor >= len(grp.children) {
		grp.cursor = 0
	} else if idx < grp.cursor {
		grp.cursor--
	}
}

// Len reports how many children are still live.
func (grp *Group[T]) Len() int {
	grp.mu.Lock()
	defer grp.mu.Unlock()
	return len(grp.children)
}

// Collapse drains the group to exhaustion and returns the result as a
// single Generator, preserving delays and the first live child's id. The
// returned Generator shares its first live child's Global, so it can be
// split or chained like any other.
func Collapse[T any](ctx context.Context, grp *Group[T]) (*Generator[T], error) {
	var pairs []Pair[T]
	var id uint64
	var g *global.Global
	first := true

	grp.mu.Lock()
	if len(grp.children) > 0 {
		id = grp.children[0].gen.ID()
		g = grp.children[0].gen.global
	}
	grp.mu.Unlock()

	for {
		grp.mu.Lock()
		if len(grp.children) == 0 {
			grp.mu.Unlock()
			break
		}
		idx := grp.selectIndexLocked()
		child := grp.children[idx]
		grp.mu.Unlock()

		item, d, ok := child.gen.GetWithoutDelay()
		if !ok {
			grp.mu.Lock()
			grp.removeLocked(idx)
			grp.mu.Unlock()
			continue
		}
		if first {
			id = child.gen.ID()
			first = false
		}
		pairs = append(pairs, Pair[T]{Item: item, Delay: d})

		grp.mu.Lock()
		grp.advanceLocked(idx)
		grp.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	return &Generator[T]{id: id, global: g, items: pairs}, nil
}
