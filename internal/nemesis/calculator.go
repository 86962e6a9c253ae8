package nemesis

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"jepsengo/internal/cluster"
	"jepsengo/internal/mathutil"
)

// ErrPartitionTooLarge is returned when a partition's minority side
// would not leave a non-empty majority side.
var ErrPartitionTooLarge = errors.New("nemesis: partition set covers entire cluster")

// ErrInvalidN is returned by PartitionRandomN when N does not leave a
// non-empty majority side.
var ErrInvalidN = errors.New("nemesis: n out of range for cluster size")

// Calculator resolves declarative Intents into concrete Records by
// consulting the cluster's current size and leader.
type Calculator struct {
	adapter cluster.FaultOps
	rng     *rand.Rand
}

// NewCalculator builds a Calculator against adapter, seeding
// PartitionRandomN's selection deterministically.
func NewCalculator(adapter cluster.FaultOps, seed uint64) *Calculator {
	return &Calculator{
		adapter: adapter,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Calculate resolves intent into a Record. It consults the cluster's
// size and, for leader-relative intents, its current leader, exactly
// once per call.
func (c *Calculator) Calculate(ctx context.Context, intent Intent) (Record, error) {
	size, err := c.adapter.ClusterSize(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("nemesis: cluster size: %w", err)
	}

	switch intent.Type {
	case Noop:
		return Record{Kind: RecordNoop}, nil

	case Kill:
		return Record{Kind: RecordKill, Servers: intent.Servers}, nil

	case Pause:
		return Record{Kind: RecordPause, Servers: intent.Servers}, nil

	case SplitOne:
		return c.partitionHalves(map[ServerID]struct{}{intent.Server: {}}, size)

	case PartitionHalves:
		return c.partitionHalves(intent.Servers, size)

	case PartitionRandomN:
		if intent.N < 0 || intent.N >= size {
			return Record{}, fmt.Errorf("%w: n=%d size=%d", ErrInvalidN, intent.N, size)
		}
		return c.partitionHalves(c.randomSubset(size, intent.N), size)

	case PartitionMajoritiesRing:
		return c.partitionMajoritiesRing(size), nil

	case PartitionLeaderAndMajority:
		return c.partitionLeaderAndMajority(ctx, size, true)

	case LeaderSendToMajorityButCannotReceive:
		return c.partitionLeaderAndMajority(ctx, size, false)

	default:
		return Record{}, fmt.Errorf("nemesis: unknown intent type %d", intent.Type)
	}
}

func (c *Calculator) partitionHalves(set map[ServerID]struct{}, size int) (Record, error) {
	if len(set) == 0 || len(set) >= size {
		return Record{}, fmt.Errorf("%w: |set|=%d size=%d", ErrPartitionTooLarge, len(set), size)
	}
	net := make(map[ServerID]map[ServerID]struct{})
	n := ServerID(size)
	for a := ServerID(0); a < n; a++ {
		_, inA := set[a]
		for b := ServerID(0); b < n; b++ {
			if a == b {
				continue
			}
			_, inB := set[b]
			if inA != inB {
				addEdge(net, a, b)
			}
		}
	}
	return Record{Kind: RecordNet, Net: net}, nil
}

func (c *Calculator) randomSubset(size, n int) map[ServerID]struct{} {
	perm := c.rng.Perm(size)
	set := make(map[ServerID]struct{}, n)
	for _, v := range perm[:n] {
		set[ServerID(v)] = struct{}{}
	}
	return set
}

// partitionMajoritiesRing arranges the cluster on a ring: server i can
// reach the majority()-1 servers starting at i+1 and stepping by
// size/(majority()-1), and cannot reach anyone else.
func (c *Calculator) partitionMajoritiesRing(size int) Record {
	n := uint64(size)
	majority := uint64(size/2 + 1)
	k := majority - 1
	var step uint64
	if k > 0 {
		step = n / k
	}

	net := make(map[ServerID]map[ServerID]struct{})
	for i := uint64(0); i < n; i++ {
		reachable := make(map[uint64]struct{}, k)
		for j := uint64(0); j < k; j++ {
			nb := mathutil.OverflowingAddRange(i, 1+j*step, 0, n)
			reachable[nb] = struct{}{}
		}
		for x := uint64(0); x < n; x++ {
			if x == i {
				continue
			}
			if _, ok := reachable[x]; ok {
				continue
			}
			addEdge(net, i, x)
		}
	}
	return Record{Kind: RecordNet, Net: net}
}

// partitionLeaderAndMajority clogs only the leader's direct links to
// majority()-1 lowest-id followers, leaving every other link in the
// cluster untouched — it does not change connections between other
// nodes. With bothWays, each selected leader<->follower link is clogged
// in both directions. Without it (the send-but-cannot-receive variant),
// only the follower-to-leader direction is clogged, so the leader can
// still broadcast but never hears an ack back.
func (c *Calculator) partitionLeaderAndMajority(ctx context.Context, size int, bothWays bool) (Record, error) {
	leader, err := c.adapter.LeaderWithoutTerm(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("nemesis: leader lookup: %w", err)
	}
	majority := size/2 + 1

	followers := make([]ServerID, 0, size-1)
	for s := ServerID(0); s < ServerID(size); s++ {
		if s != leader {
			followers = append(followers, s)
		}
	}
	sort.Slice(followers, func(i, j int) bool { return followers[i] < followers[j] })

	quorumFollowers := majority - 1
	if quorumFollowers > len(followers) {
		quorumFollowers = len(followers)
	}

	net := make(map[ServerID]map[ServerID]struct{})
	for _, f := range followers[:quorumFollowers] {
		if bothWays {
			addEdge(net, leader, f)
		}
		addEdge(net, f, leader)
	}
	return Record{Kind: RecordNet, Net: net}, nil
}
