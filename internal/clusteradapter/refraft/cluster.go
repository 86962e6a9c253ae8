package refraft

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"

	"jepsengo/internal/callgroup"
	"jepsengo/internal/cluster"
	"jepsengo/internal/logging"
)

type node struct {
	id        cluster.ServerID
	addr      raft.ServerAddress
	transport *raft.InmemTransport
	raft      *raft.Raft
	fsm       *registerFSM
}

// Cluster is a fixed-size, in-memory raft cluster. It implements both
// cluster.Ops (reads are served locally off a randomly chosen node's FSM;
// writes are routed to the current leader) and cluster.FaultOps (faults
// are expressed as InmemTransport connects/disconnects, so Kill,
// Pause, and the nemesis calculator's partitions all reduce to the same
// primitive: which nodes can currently reach which).
type Cluster struct {
	mu     sync.Mutex
	nodes  []*node
	byID   map[cluster.ServerID]*node
	byAddr map[raft.ServerAddress]cluster.ServerID
	rng    *rand.Rand
	reads  callgroup.Group[uint64]

	applyTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Cluster at construction.
type Option func(*clusterConfig)

type clusterConfig struct {
	applyTimeout time.Duration
	logger       *slog.Logger
	seed         uint64
}

// WithApplyTimeout overrides the per-write raft.Apply timeout. Default 2s.
func WithApplyTimeout(d time.Duration) Option {
	return func(c *clusterConfig) { c.applyTimeout = d }
}

// WithLogger attaches a logger, scoped with component="refraft".
func WithLogger(logger *slog.Logger) Option {
	return func(c *clusterConfig) { c.logger = logger }
}

// WithSeed seeds the random node chosen for each Get.
func WithSeed(seed uint64) Option {
	return func(c *clusterConfig) { c.seed = seed }
}

// NewCluster bootstraps an n-node raft cluster over in-memory transports
// and blocks until a leader is elected or ctx is done.
func NewCluster(ctx context.Context, n int, opts ...Option) (*Cluster, error) {
	if n <= 0 {
		return nil, fmt.Errorf("refraft: cluster size must be positive, got %d", n)
	}
	cfg := clusterConfig{applyTimeout: 2 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Cluster{
		byID:         make(map[cluster.ServerID]*node, n),
		byAddr:       make(map[raft.ServerAddress]cluster.ServerID, n),
		rng:          rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x2545f4914f6cdd1d)),
		applyTimeout: cfg.applyTimeout,
		logger:       logging.Default(cfg.logger).With("component", "refraft"),
	}

	nodes := make([]*node, n)
	for i := 0; i < n; i++ {
		addr, transport := raft.NewInmemTransport(raft.ServerAddress(fmt.Sprintf("node-%d", i)))
		nodes[i] = &node{
			id:        cluster.ServerID(i),
			addr:      raft.ServerAddress(addr),
			transport: transport,
			fsm:       newRegisterFSM(),
		}
		c.byID[cluster.ServerID(i)] = nodes[i]
		c.byAddr[raft.ServerAddress(addr)] = cluster.ServerID(i)
	}
	c.nodes = nodes

	for i, a := range nodes {
		for j, b := range nodes {
			if i == j {
				continue
			}
			a.transport.Connect(b.addr, b.transport)
		}
	}

	servers := make([]raft.Server, n)
	for i, nd := range nodes {
		servers[i] = raft.Server{Suffrage: raft.Voter, ID: raft.ServerID(nd.addr), Address: nd.addr}
	}
	configuration := raft.Configuration{Servers: servers}

	for _, nd := range nodes {
		conf := raft.DefaultConfig()
		conf.LocalID = raft.ServerID(nd.addr)
		conf.Logger = hclog.New(&hclog.LoggerOptions{Name: string(nd.addr), Level: hclog.Warn})

		logs := raft.NewInmemStore()
		stable := raft.NewInmemStore()
		snaps := raft.NewInmemSnapshotStore()

		r, err := raft.NewRaft(conf, nd.fsm, logs, stable, snaps, nd.transport)
		if err != nil {
			return nil, fmt.Errorf("refraft: new raft for %s: %w", nd.addr, err)
		}
		if err := r.BootstrapCluster(configuration).Error(); err != nil {
			return nil, fmt.Errorf("refraft: bootstrap %s: %w", nd.addr, err)
		}
		nd.raft = r
	}

	if err := c.awaitLeader(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cluster) awaitLeader(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := c.leaderLocked(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return fmt.Errorf("refraft: no leader elected before deadline")
}

func (c *Cluster) leaderLocked() (*node, error) {
	for _, nd := range c.nodes {
		if nd.raft.State() == raft.Leader {
			return nd, nil
		}
	}
	return nil, fmt.Errorf("refraft: no current leader")
}

// Get reads key from a randomly chosen node's local FSM state: under
// partition or lag, this can observe a stale or missing value, which is
// exactly the behavior the checker is there to judge. Concurrent Gets for
// the same key from different dispatcher workers are coalesced onto one
// underlying FSM lookup.
func (c *Cluster) Get(ctx context.Context, key uint64) (*uint64, error) {
	return callgroup.Do(&c.reads, key, func() (*uint64, error) {
		c.mu.Lock()
		nd := c.nodes[c.rng.IntN(len(c.nodes))]
		c.mu.Unlock()
		return nd.fsm.Get(key)
	})
}

// Put routes value through the current leader's raft log.
func (c *Cluster) Put(ctx context.Context, key, value uint64) error {
	c.mu.Lock()
	leader, err := c.leaderLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	future := leader.raft.Apply(encodeCommand(key, value), c.applyTimeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("refraft: apply: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok {
			return err
		}
	}
	return nil
}

// LeaderWithoutTerm reports the current leader's ServerID.
func (c *Cluster) LeaderWithoutTerm(ctx context.Context) (cluster.ServerID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	leader, err := c.leaderLocked()
	if err != nil {
		return 0, err
	}
	return leader.id, nil
}

// ClusterSize reports the fixed node count.
func (c *Cluster) ClusterSize(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes), nil
}

// Kill fully isolates each named server from every other node, in both
// directions.
func (c *Cluster) Kill(ctx context.Context, servers []cluster.ServerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range servers {
		c.isolateLocked(id)
	}
	c.logger.Info("kill", "servers", servers)
	return nil
}

// Restart reverses Kill, reconnecting each named server to every other node.
func (c *Cluster) Restart(ctx context.Context, servers []cluster.ServerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range servers {
		c.reconnectLocked(id)
	}
	c.logger.Info("restart", "servers", servers)
	return nil
}

// Pause approximates a frozen process with the same full isolation Kill
// uses: an in-process raft node has no OS thread to stop, so "paused" and
// "unreachable" are indistinguishable from the rest of the cluster's
// point of view.
func (c *Cluster) Pause(ctx context.Context, servers []cluster.ServerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range servers {
		c.isolateLocked(id)
	}
	c.logger.Info("pause", "servers", servers)
	return nil
}

// Resume reverses Pause.
func (c *Cluster) Resume(ctx context.Context, servers []cluster.ServerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range servers {
		c.reconnectLocked(id)
	}
	c.logger.Info("resume", "servers", servers)
	return nil
}

func (c *Cluster) isolateLocked(id cluster.ServerID) {
	target, ok := c.byID[id]
	if !ok {
		return
	}
	target.transport.DisconnectAll()
	for _, other := range c.nodes {
		if other.id == id {
			continue
		}
		other.transport.Disconnect(target.addr)
	}
}

func (c *Cluster) reconnectLocked(id cluster.ServerID) {
	target, ok := c.byID[id]
	if !ok {
		return
	}
	for _, other := range c.nodes {
		if other.id == id {
			continue
		}
		target.transport.Connect(other.addr, other.transport)
		other.transport.Connect(target.addr, target.transport)
	}
}

// ClogOneWay drops only the from->to direction: InmemTransport consults
// the sender's own peer map, so disconnecting one side is naturally a
// one-way link, no extra bookkeeping required.
func (c *Cluster) ClogOneWay(ctx context.Context, from, to cluster.ServerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.byID[from]
	if !ok {
		return fmt.Errorf("refraft: unknown server %d", from)
	}
	t, ok := c.byID[to]
	if !ok {
		return fmt.Errorf("refraft: unknown server %d", to)
	}
	f.transport.Disconnect(t.addr)
	return nil
}

// UnclogOneWay reverses ClogOneWay.
func (c *Cluster) UnclogOneWay(ctx context.Context, from, to cluster.ServerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.byID[from]
	if !ok {
		return fmt.Errorf("refraft: unknown server %d", from)
	}
	t, ok := c.byID[to]
	if !ok {
		return fmt.Errorf("refraft: unknown server %d", to)
	}
	f.transport.Connect(t.addr, t.transport)
	return nil
}

// Shutdown stops every raft node. Intended for test and process teardown.
func (c *Cluster) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, nd := range c.nodes {
		if err := nd.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("refraft: shutdown %s: %w", nd.addr, err)
		}
	}
	return nil
}

var _ cluster.Ops = (*Cluster)(nil)
var _ cluster.FaultOps = (*Cluster)(nil)
