package rawgen

import (
	"math/rand/v2"
	"sync"

	"jepsengo/internal/op"
)

// RegisterWorkload is the reference RawGenerator: reads and writes (and
// occasional single-statement transactions) over a bounded key space,
// `0 .. keySpace-1`. Writes carry monotonically increasing per-key
// values so a checker can distinguish the most recent write from stale
// ones; reads are invocation-shaped (nil value) and left for the worker
// to resolve against the cluster adapter.
//
// Next refills an internal cache in batches of cacheSize rather than
// calling through to the random source once per element, the same
// batching discipline the register workload uses upstream.
type RegisterWorkload struct {
	mu sync.Mutex

	keySpace  uint64
	cacheSize int
	txnProb   float64
	rng       *rand.Rand
	nextValue []uint64

	buf []op.Op
	pos int
}

// NewRegisterWorkload constructs a RegisterWorkload over keys
// [0, keySpace), refilling its cache cacheSize ops at a time, issuing a
// single-statement Txn with probability txnProb, seeded deterministically
// from seed (so a simulation-mode harness can reproduce a run exactly).
func NewRegisterWorkload(keySpace uint64, cacheSize int, txnProb float64, seed uint64) *RegisterWorkload {
	if keySpace == 0 {
		keySpace = 1
	}
	if cacheSize <= 0 {
		cacheSize = 1
	}
	return &RegisterWorkload{
		keySpace:  keySpace,
		cacheSize: cacheSize,
		txnProb:   txnProb,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		nextValue: make([]uint64, keySpace),
	}
}

// Next returns the next op, refilling the cache when exhausted.
func (w *RegisterWorkload) Next() op.Op {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pos >= len(w.buf) {
		w.refillLocked()
	}
	o := w.buf[w.pos]
	w.pos++
	return o
}

// NextN returns the next n ops, satisfying rawgen.Batcher.
func (w *RegisterWorkload) NextN(n int) []op.Op {
	out := make([]op.Op, 0, n)
	for len(out) < n {
		out = append(out, w.Next())
	}
	return out
}

func (w *RegisterWorkload) refillLocked() {
	w.buf = make([]op.Op, w.cacheSize)
	for i := range w.buf {
		w.buf[i] = w.genOneLocked()
	}
	w.pos = 0
}

func (w *RegisterWorkload) genOneLocked() op.Op {
	key := w.rng.Uint64() % w.keySpace
	leaf := w.genLeafLocked(key)
	if w.rng.Float64() < w.txnProb {
		txn, err := op.Txn(leaf)
		if err != nil {
			// leaf is never a Txn, so this cannot happen.
			panic(err)
		}
		return txn
	}
	return leaf
}

func (w *RegisterWorkload) genLeafLocked(key uint64) op.Op {
	if w.rng.Float64() < 0.5 {
		return op.Read(key, nil)
	}
	w.nextValue[key]++
	return op.Write(key, w.nextValue[key])
}
