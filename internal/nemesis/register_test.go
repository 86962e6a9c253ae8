package nemesis

import (
	"context"
	"testing"
)

type recordingAdapter struct {
	restarted [][]ServerID
}

func (f *recordingAdapter) Kill(ctx context.Context, servers []ServerID) error { return nil }
func (f *recordingAdapter) Restart(ctx context.Context, servers []ServerID) error {
	f.restarted = append(f.restarted, servers)
	return nil
}
func (f *recordingAdapter) Pause(ctx context.Context, servers []ServerID) error       { return nil }
func (f *recordingAdapter) Resume(ctx context.Context, servers []ServerID) error      { return nil }
func (f *recordingAdapter) ClogOneWay(ctx context.Context, from, to ServerID) error   { return nil }
func (f *recordingAdapter) UnclogOneWay(ctx context.Context, from, to ServerID) error { return nil }
func (f *recordingAdapter) LeaderWithoutTerm(ctx context.Context) (ServerID, error)   { return 0, nil }
func (f *recordingAdapter) ClusterSize(ctx context.Context) (int, error)              { return 3, nil }

func killRecord(servers ...ServerID) Record {
	set := make(map[ServerID]struct{}, len(servers))
	for _, s := range servers {
		set[s] = struct{}{}
	}
	return Record{Kind: RecordKill, Servers: set}
}

// TestFIFOEvictsOldestOnOverflow reproduces a three-nemesis FIFO(2)
// schedule: the third push evicts and recovers the first, and shutdown
// recovers the remaining two.
func TestFIFOEvictsOldestOnOverflow(t *testing.T) {
	adapter := &recordingAdapter{}
	reg := NewRegister(FIFO, 2, NewExecutor(adapter, nil), 1)
	ctx := context.Background()

	r1, r2, r3 := killRecord(0), killRecord(1), killRecord(2)
	if err := reg.Push(ctx, r1); err != nil {
		t.Fatalf("push r1: %v", err)
	}
	if err := reg.Push(ctx, r2); err != nil {
		t.Fatalf("push r2: %v", err)
	}
	if len(adapter.restarted) != 0 {
		t.Fatalf("no eviction expected yet, got %v", adapter.restarted)
	}
	if err := reg.Push(ctx, r3); err != nil {
		t.Fatalf("push r3: %v", err)
	}
	if len(adapter.restarted) != 1 || adapter.restarted[0][0] != 0 {
		t.Fatalf("expected r1 (server 0) evicted first, got %v", adapter.restarted)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 retained, got %d", reg.Len())
	}

	if err := reg.DrainAndRecover(ctx); err != nil {
		t.Fatalf("DrainAndRecover: %v", err)
	}
	if len(adapter.restarted) != 3 {
		t.Fatalf("expected 3 total recover calls, got %d", len(adapter.restarted))
	}
	if reg.Len() != 0 {
		t.Fatalf("expected register empty after drain, got %d", reg.Len())
	}
}

func TestUnboundedRegisterNeverEvicts(t *testing.T) {
	adapter := &recordingAdapter{}
	reg := NewRegister(FIFO, 0, NewExecutor(adapter, nil), 1)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := reg.Push(ctx, killRecord(ServerID(i))); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if len(adapter.restarted) != 0 {
		t.Fatalf("unbounded register should never evict, got %v", adapter.restarted)
	}
	if reg.Len() != 5 {
		t.Fatalf("expected 5 retained, got %d", reg.Len())
	}
}
