// Package generator implements the generator algebra: a finite,
// per-logical-process stream of (item, delay) pairs with algebraic
// transforms, and a GeneratorGroup that multiplexes several generators
// behind one selection strategy.
//
// Generator is generic over its item type so the same algebra serves
// both the data-plane op stream (Generator[op.Op]) and the orchestrator's
// combined data/nemesis event stream (see internal/orchestrator).
package generator

import (
	"context"
	"sync"

	"jepsengo/internal/delay"
	"jepsengo/internal/global"
)

// Pair is one element of a generator's stream: an item paired with the
// delay policy to apply before yielding it.
type Pair[T any] struct {
	Item  T
	Delay delay.Policy
}

// Generator is a finite stream of Pair[T] plus the worker-id (logical
// process identity) it was constructed for. A Generator exclusively owns
// its stream; SplitAt transfers tail ownership to a new Generator.
type Generator[T any] struct {
	mu     sync.Mutex
	id     uint64
	global *global.Global
	items  []Pair[T]
	pos    int
}

// New builds a Generator over items, each paired with the same delay
// policy d, allocating a fresh id from g.
func New[T any](g *global.Global, items []T, d delay.Policy) *Generator[T] {
	pairs := make([]Pair[T], len(items))
	for i, it := range items {
		pairs[i] = Pair[T]{Item: it, Delay: d}
	}
	return NewPaired(g, pairs)
}

// NewPaired builds a Generator over a pre-paired (item, delay) stream,
// allocating a fresh id from g.
func NewPaired[T any](g *global.Global, pairs []Pair[T]) *Generator[T] {
	return &Generator[T]{
		id:     g.AllocateID(),
		global: g,
		items:  pairs,
	}
}

// Empty returns a terminated stream, still allocating an id from g (an
// empty Generator is a valid, released-on-chain participant in a group).
func Empty[T any](g *global.Global) *Generator[T] {
	return &Generator[T]{id: g.AllocateID(), global: g}
}

// ID returns the generator's logical process identity.
func (gen *Generator[T]) ID() uint64 {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	return gen.id
}

// Remaining reports how many elements are left unconsumed.
func (gen *Generator[T]) Remaining() int {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	return len(gen.items) - gen.pos
}

func (gen *Generator[T]) remainingLocked() []Pair[T] {
	return gen.items[gen.pos:]
}

// Map returns a new Generator, with the same id, applying f pointwise to
// every remaining item. Delays pass through unchanged.
func (gen *Generator[T]) Map(f func(T) T) *Generator[T] {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	rem := gen.remainingLocked()
	out := make([]Pair[T], len(rem))
	for i, p := range rem {
		out[i] = Pair[T]{Item: f(p.Item), Delay: p.Delay}
	}
	return &Generator[T]{id: gen.id, global: gen.global, items: out}
}

// Filter returns a new Generator, with the same id, keeping only items
// for which p returns true. Both the item and its paired delay are
// dropped together where p is false.
func (gen *Generator[T]) Filter(p func(T) bool) *Generator[T] {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	rem := gen.remainingLocked()
	out := make([]Pair[T], 0, len(rem))
	for _, pr := range rem {
		if p(pr.Item) {
			out = append(out, pr)
		}
	}
	return &Generator[T]{id: gen.id, global: gen.global, items: out}
}

// Take returns a new Generator, with the same id, over the prefix of
// length min(n, Remaining()).
func (gen *Generator[T]) Take(n int) *Generator[T] {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	rem := gen.remainingLocked()
	if n > len(rem) {
		n = len(rem)
	}
	if n < 0 {
		n = 0
	}
	out := make([]Pair[T], n)
	copy(out, rem[:n])
	return &Generator[T]{id: gen.id, global: gen.global, items: out}
}

// SplitAt splits the remaining stream at n: head keeps the original id
// and the first min(n, Remaining()) elements; tail receives a freshly
// allocated id and the rest. head and tail are disjoint and
// head ++ tail == the original remaining stream.
func (gen *Generator[T]) SplitAt(n int) (head, tail *Generator[T]) {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	rem := gen.remainingLocked()
	if n > len(rem) {
		n = len(rem)
	}
	if n < 0 {
		n = 0
	}

	headItems := make([]Pair[T], n)
	copy(headItems, rem[:n])
	tailItems := make([]Pair[T], len(rem)-n)
	copy(tailItems, rem[n:])

	head = &Generator[T]{id: gen.id, global: gen.global, items: headItems}
	tail = &Generator[T]{id: gen.global.AllocateID(), global: gen.global, items: tailItems}
	return head, tail
}

// Chain concatenates gen and other into a single Generator: the result
// keeps gen's id; other's id is released back to Global.
func (gen *Generator[T]) Chain(other *Generator[T]) *Generator[T] {
	gen.mu.Lock()
	rem := gen.remainingLocked()
	selfItems := make([]Pair[T], len(rem))
	copy(selfItems, rem)
	id := gen.id
	g := gen.global
	gen.mu.Unlock()

	other.mu.Lock()
	otherRem := other.remainingLocked()
	otherItems := make([]Pair[T], len(otherRem))
	copy(otherItems, otherRem)
	otherID := other.id
	other.mu.Unlock()

	g.ReleaseID(otherID)

	return &Generator[T]{id: id, global: g, items: append(selfItems, otherItems...)}
}

// Next awaits the paired delay, then returns the next item. It returns
// (nil, nil) at end of stream.
func (gen *Generator[T]) Next(ctx context.Context) (*T, error) {
	item, _, err := gen.NextWithID(ctx)
	return item, err
}

// NextWithID is Next plus the generator's id, for callers that multiplex
// several generators and need to route the item by id (the dispatcher).
func (gen *Generator[T]) NextWithID(ctx context.Context) (*T, uint64, error) {
	gen.mu.Lock()
	if gen.pos >= len(gen.items) {
		id := gen.id
		gen.mu.Unlock()
		return nil, id, nil
	}
	p := gen.items[gen.pos]
	gen.pos++
	id := gen.id
	gen.mu.Unlock()

	if err := p.Delay.Wait(ctx); err != nil {
		return nil, id, err
	}
	item := p.Item
	return &item, id, nil
}

// GetWithoutDelay returns the next (item, delay) pair without waiting on
// the delay, advancing the stream. Used by higher layers that need to
// observe the schedule without sleeping (tests, GeneratorGroup
// collapsing). ok is false at end of stream.
func (gen *Generator[T]) GetWithoutDelay() (item T, d delay.Policy, ok bool) {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	if gen.pos >= len(gen.items) {
		return item, d, false
	}
	p := gen.items[gen.pos]
	gen.pos++
	return p.Item, p.Delay, true
}
