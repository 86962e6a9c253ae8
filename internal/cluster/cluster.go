// Package cluster defines the narrow capability interfaces the core
// engine requires from a cluster-under-test. Both interfaces are
// consumed, never implemented, by the core; concrete adapters live under
// internal/clusteradapter.
package cluster

import "context"

// ServerID identifies a node in the cluster-under-test's topology.
type ServerID = uint64

// Ops is the data-plane capability: the register workload's get/put.
type Ops interface {
	// Get returns the current value for key, or nil if absent.
	Get(ctx context.Context, key uint64) (*uint64, error)
	// Put writes value for key.
	Put(ctx context.Context, key, value uint64) error
}

// FaultOps is the optional fault-injection capability consumed by the
// nemesis calculator and executor.
type FaultOps interface {
	Kill(ctx context.Context, servers []ServerID) error
	Restart(ctx context.Context, servers []ServerID) error
	Pause(ctx context.Context, servers []ServerID) error
	Resume(ctx context.Context, servers []ServerID) error

	// ClogOneWay and UnclogOneWay each act on a single directed link;
	// both directions of a two-way clog are expressed as two calls.
	ClogOneWay(ctx context.Context, from, to ServerID) error
	UnclogOneWay(ctx context.Context, from, to ServerID) error

	LeaderWithoutTerm(ctx context.Context) (ServerID, error)
	ClusterSize(ctx context.Context) (int, error)
}
