package nemesis

import (
	"context"
	"math/rand/v2"
	"sync"
)

// RetentionPolicy picks which in-flight fault a full Register evicts
// (and recovers) to make room for a new one.
type RetentionPolicy int

const (
	// FIFO evicts the oldest still-injected fault.
	FIFO RetentionPolicy = iota
	// RandomQueue evicts a uniformly random still-injected fault.
	RandomQueue
)

// Register retains up to capacity concurrently-injected faults. Pushing
// past capacity recovers one retained fault (per policy) before
// admitting the new one, so the number of simultaneously active faults
// never exceeds capacity. DrainAndRecover, called at shutdown, recovers
// everything still retained.
type Register struct {
	mu       sync.Mutex
	policy   RetentionPolicy
	capacity int
	queue    []Record
	rng      *rand.Rand
	executor *Executor
}

// NewRegister builds a Register with the given policy, capacity, and
// executor used to recover evicted or drained faults. capacity <= 0
// means unbounded (faults accumulate until DrainAndRecover).
func NewRegister(policy RetentionPolicy, capacity int, executor *Executor, seed uint64) *Register {
	return &Register{
		policy:   policy,
		capacity: capacity,
		executor: executor,
		rng:      rand.New(rand.NewPCG(seed, seed^0xd1b54a32d192ed03)),
	}
}

// Push retains rec, first recovering and evicting one existing entry if
// the register is already at capacity.
func (r *Register) Push(ctx context.Context, rec Record) error {
	r.mu.Lock()
	var victim Record
	evict := false
	if r.capacity > 0 && len(r.queue) >= r.capacity {
		idx := 0
		if r.policy == RandomQueue {
			idx = r.rng.IntN(len(r.queue))
		}
		victim = r.queue[idx]
		r.queue = append(r.queue[:idx], r.queue[idx+1:]...)
		evict = true
	}
	r.mu.Unlock()

	if evict {
		if err := r.executor.Recover(ctx, victim); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.queue = append(r.queue, rec)
	r.mu.Unlock()
	return nil
}

// Len reports how many faults are currently retained.
func (r *Register) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// DrainAndRecover recovers every retained fault and empties the
// register. Called once, at harness shutdown.
func (r *Register) DrainAndRecover(ctx context.Context) error {
	r.mu.Lock()
	remaining := r.queue
	r.queue = nil
	r.mu.Unlock()

	for _, rec := range remaining {
		if err := r.executor.Recover(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
