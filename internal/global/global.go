// Package global holds the process-wide state shared by every generator
// and worker in a single run: the monotonic start time, the worker-id
// allocator, the single-consumer raw source, and the history log.
//
// A Global is created exactly once per run and torn down at run end. It
// outlives every Generator and GeneratorGroup built over it; those hold
// only a shared reference back to it.
package global

import (
	"log/slog"
	"sync"
	"time"

	"jepsengo/internal/history"
	"jepsengo/internal/logging"
	"jepsengo/internal/op"
	"jepsengo/internal/rawgen"
)

// Global is the process-wide, single-initialization shared state.
type Global struct {
	// StartTime anchors every history timestamp; it is set once at
	// construction and never mutated.
	StartTime time.Time

	// History is the exclusive mutable history log for the run.
	History *history.History

	idMu sync.Mutex
	ids  map[uint64]struct{}

	rawMu sync.Mutex
	raw   rawgen.RawGenerator

	logger *slog.Logger
}

// Option configures a Global at construction time.
type Option func(*Global)

// WithLogger attaches a logger, scoped with component="global".
func WithLogger(logger *slog.Logger) Option {
	return func(g *Global) { g.logger = logger }
}

// WithNow overrides the clock used for history timestamps. Intended for
// deterministic tests; defaults to time.Now.
func WithNow(now func() time.Time) Option {
	return func(g *Global) {
		g.History = history.New(g.StartTime, now)
	}
}

// New creates a Global over raw, the single-consumer source of base ops.
func New(raw rawgen.RawGenerator, opts ...Option) *Global {
	start := time.Now()
	g := &Global{
		StartTime: start,
		History:   history.New(start, nil),
		ids:       make(map[uint64]struct{}),
		raw:       raw,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.Default(g.logger).With("component", "global")
	return g
}

// AllocateID returns the smallest worker-id not currently in use and
// marks it in use.
func (g *Global) AllocateID() uint64 {
	g.idMu.Lock()
	defer g.idMu.Unlock()

	var id uint64
	for {
		if _, taken := g.ids[id]; !taken {
			g.ids[id] = struct{}{}
			g.logger.Debug("allocated worker id", "id", id)
			return id
		}
		id++
	}
}

// ReleaseID returns id to the pool of available ids.
func (g *Global) ReleaseID(id uint64) {
	g.idMu.Lock()
	defer g.idMu.Unlock()
	delete(g.ids, id)
	g.logger.Debug("released worker id", "id", id)
}

// IDsInUse reports how many worker-ids are currently allocated. Intended
// for tests verifying invariant #6 (the id set empties after all
// releases).
func (g *Global) IDsInUse() int {
	g.idMu.Lock()
	defer g.idMu.Unlock()
	return len(g.ids)
}

// TakePrefix drains up to n elements from the raw source under an
// exclusive lock. It is the sole consumption point for raw: callers
// (generator construction) must never read raw directly.
func (g *Global) TakePrefix(n int) []op.Op {
	g.rawMu.Lock()
	defer g.rawMu.Unlock()
	return rawgen.NextN(g.raw, n)
}
