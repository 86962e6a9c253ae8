// Package nemesis turns declarative fault intents into concrete,
// reversible fault records against a cluster-under-test, and retains a
// bounded set of in-flight faults so the harness can guarantee every
// injected fault is eventually recovered.
package nemesis

import "jepsengo/internal/cluster"

// ServerID identifies a node in the cluster-under-test.
type ServerID = cluster.ServerID

// Type is the declarative shape of a fault request: what the caller
// wants, independent of the cluster's current topology. The calculator
// resolves a Type against live cluster state (size, leader) into a
// concrete Record.
type Type int

const (
	// Noop injects nothing; used to exercise the schedule without a
	// real fault.
	Noop Type = iota
	// Kill stops the processes named in Servers.
	Kill
	// Pause freezes (SIGSTOP-style) the processes named in Servers.
	Pause
	// SplitOne isolates a single server from the rest of the cluster.
	SplitOne
	// PartitionHalves splits the cluster into Servers and its
	// complement, clogging every cross link both ways.
	PartitionHalves
	// PartitionRandomN partitions the cluster into a randomly chosen
	// N-node minority and the rest.
	PartitionRandomN
	// PartitionMajoritiesRing arranges the cluster on a ring where each
	// server can still reach a majority of its neighbors, but no two
	// servers share the same reachable majority.
	PartitionMajoritiesRing
	// PartitionLeaderAndMajority clogs only the leader's direct links
	// to the majority()-1 lowest-id followers, both ways; it does not
	// change connections between any other pair of servers.
	PartitionLeaderAndMajority
	// LeaderSendToMajorityButCannotReceive clogs only the
	// follower-to-leader direction, for the same choice of followers as
	// PartitionLeaderAndMajority: the leader can still broadcast but
	// cannot hear acks.
	LeaderSendToMajorityButCannotReceive
)

// Intent is a fault request: a Type plus whatever parameters it needs.
type Intent struct {
	Type    Type
	Servers map[ServerID]struct{} // Kill, Pause, PartitionHalves
	Server  ServerID               // SplitOne
	N       int                    // PartitionRandomN
}

// RecordKind is the concrete shape a resolved fault takes against the
// adapter's capability surface.
type RecordKind int

const (
	RecordNoop RecordKind = iota
	RecordKill
	RecordPause
	// RecordNet clogs a set of directed links; Net[a] is the set of
	// destinations b for which the a->b link is clogged.
	RecordNet
)

// Record is the concrete, reversible effect of resolving an Intent
// against a cluster's current state. Executing a Record and then
// recovering it must return the cluster to its prior fault-free state.
type Record struct {
	Kind    RecordKind
	Servers map[ServerID]struct{}
	Net     map[ServerID]map[ServerID]struct{}
}

func addEdge(net map[ServerID]map[ServerID]struct{}, from, to ServerID) {
	targets, ok := net[from]
	if !ok {
		targets = make(map[ServerID]struct{})
		net[from] = targets
	}
	targets[to] = struct{}{}
}
