package generator

import (
	"context"
	"testing"

	"jepsengo/internal/delay"
	"jepsengo/internal/global"
	"jepsengo/internal/rawgen"
)

func testGlobal() *global.Global {
	return global.New(rawgen.NewRegisterWorkload(4, 4, 0, 1))
}

func collect(t *testing.T, gen *Generator[int]) []int {
	t.Helper()
	var out []int
	for {
		item, err := gen.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if item == nil {
			return out
		}
		out = append(out, *item)
	}
}

func ints(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestSplitAtAndChainIdentity(t *testing.T) {
	g := testGlobal()
	gen := New(g, ints(1, 10), delay.NewNone())
	originalID := gen.ID()
	before := g.IDsInUse()

	head, tail := gen.SplitAt(5)
	if head.ID() != originalID {
		t.Errorf("head should keep original id %d, got %d", originalID, head.ID())
	}
	if tail.ID() == originalID {
		t.Error("tail must receive a new id")
	}
	if head.Remaining() != 5 {
		t.Errorf("head should have 5 elements, got %d", head.Remaining())
	}

	chained := head.Chain(tail)
	if chained.ID() != originalID {
		t.Errorf("chain should keep head's id, got %d", chained.ID())
	}

	got := collect(t, chained)
	want := ints(1, 10)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}

	if after := g.IDsInUse(); after != before {
		t.Errorf("id set should shrink by one after chain: before=%d after=%d", before, after)
	}
}

func TestMapAndFilter(t *testing.T) {
	g := testGlobal()
	gen := New(g, ints(1, 6), delay.NewNone())

	doubled := gen.Map(func(i int) int { return i * 2 })
	got := collect(t, doubled)
	want := []int{2, 4, 6, 8, 10, 12}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}

	gen2 := New(g, ints(1, 10), delay.NewNone())
	evens := gen2.Filter(func(i int) bool { return i%2 == 0 })
	got2 := collect(t, evens)
	want2 := []int{2, 4, 6, 8, 10}
	if len(got2) != len(want2) {
		t.Fatalf("got %v, want %v", got2, want2)
	}
}

func TestTakeClampsToRemaining(t *testing.T) {
	g := testGlobal()
	gen := New(g, ints(1, 3), delay.NewNone())
	taken := gen.Take(100)
	if taken.Remaining() != 3 {
		t.Errorf("Take(100) over 3 elements should yield 3, got %d", taken.Remaining())
	}
}

func TestRoundRobinWithQuotas(t *testing.T) {
	g := testGlobal()
	gen1 := New(g, ints(1, 5), delay.NewNone())
	gen2 := New(g, ints(6, 10), delay.NewNone())

	grp := NewGroup(RoundRobin, 1,
		ChildSpec[int]{Gen: gen1, Quota: 2},
		ChildSpec[int]{Gen: gen2, Quota: 3},
	)

	var got []int
	for {
		item, _, err := grp.NextWithID(context.Background())
		if err != nil {
			t.Fatalf("NextWithID: %v", err)
		}
		if item == nil {
			break
		}
		got = append(got, *item)
	}

	want := []int{1, 2, 6, 7, 8, 3, 4, 9, 10, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestGroupChainEquivalence(t *testing.T) {
	g := testGlobal()
	gen0 := New(g, ints(1, 3), delay.NewNone())
	gen1 := New(g, ints(4, 6), delay.NewNone())
	gen2 := New(g, ints(7, 9), delay.NewNone())

	grp := NewGroup(Chain, 1,
		ChildSpec[int]{Gen: gen0},
		ChildSpec[int]{Gen: gen1},
		ChildSpec[int]{Gen: gen2},
	)

	var got []int
	for {
		item, _, err := grp.NextWithID(context.Background())
		if err != nil {
			t.Fatalf("NextWithID: %v", err)
		}
		if item == nil {
			break
		}
		got = append(got, *item)
	}

	want := ints(1, 9)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestGroupEmptyReturnsEndOfStream(t *testing.T) {
	grp := NewGroup[int](Chain, 1)
	item, _, err := grp.NextWithID(context.Background())
	if err != nil {
		t.Fatalf("NextWithID: %v", err)
	}
	if item != nil {
		t.Errorf("expected end of stream, got %v", *item)
	}
}

func TestCollapsePreservesOrderAndFirstID(t *testing.T) {
	g := testGlobal()
	gen0 := New(g, ints(1, 3), delay.NewNone())
	gen1 := New(g, ints(4, 6), delay.NewNone())
	firstID := gen0.ID()

	grp := NewGroup(Chain, 1,
		ChildSpec[int]{Gen: gen0},
		ChildSpec[int]{Gen: gen1},
	)

	collapsed, err := Collapse(context.Background(), grp)
	if err != nil {
		t.Fatalf("Collapse: %v", err)
	}
	if collapsed.ID() != firstID {
		t.Errorf("expected collapsed id %d, got %d", firstID, collapsed.ID())
	}
	got := collect(t, collapsed)
	want := ints(1, 6)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
