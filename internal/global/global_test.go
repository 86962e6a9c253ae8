package global

import (
	"testing"

	"jepsengo/internal/rawgen"
)

func newTestGlobal() *Global {
	return New(rawgen.NewRegisterWorkload(4, 4, 0.1, 1))
}

func TestAllocateIDReturnsSmallestMissing(t *testing.T) {
	g := newTestGlobal()
	a := g.AllocateID()
	b := g.AllocateID()
	c := g.AllocateID()
	if a != 0 || b != 1 || c != 2 {
		t.Fatalf("expected 0,1,2 got %d,%d,%d", a, b, c)
	}

	g.ReleaseID(b)
	d := g.AllocateID()
	if d != 1 {
		t.Errorf("expected released id 1 to be reused, got %d", d)
	}
}

func TestReleaseAllEmptiesSet(t *testing.T) {
	g := newTestGlobal()
	ids := make([]uint64, 5)
	for i := range ids {
		ids[i] = g.AllocateID()
	}
	for _, id := range ids {
		g.ReleaseID(id)
	}
	if n := g.IDsInUse(); n != 0 {
		t.Errorf("expected empty id set after releasing all, got %d in use", n)
	}
}

func TestTakePrefixDrainsExactCount(t *testing.T) {
	g := newTestGlobal()
	ops := g.TakePrefix(7)
	if len(ops) != 7 {
		t.Errorf("expected 7 ops, got %d", len(ops))
	}
}
