package mathutil

import "testing"

func TestOverflowingAddRange(t *testing.T) {
	cases := []struct {
		x, k, lo, hi, want uint64
	}{
		{1, 4, 1, 4, 2},
		{1, 9, 1, 4, 1},
		{114514, 1, 1, 4, 1},
	}
	for _, c := range cases {
		got := OverflowingAddRange(c.x, c.k, c.lo, c.hi)
		if got != c.want {
			t.Errorf("OverflowingAddRange(%d,%d,%d,%d) = %d, want %d", c.x, c.k, c.lo, c.hi, got, c.want)
		}
		if got < c.lo || got >= c.hi {
			t.Errorf("result %d out of range [%d,%d)", got, c.lo, c.hi)
		}
	}
}

func TestOverflowingAddRangeInRangeFormula(t *testing.T) {
	lo, hi := uint64(2), uint64(9)
	for x := lo; x < hi; x++ {
		for k := uint64(0); k < 20; k++ {
			got := OverflowingAddRange(x, k, lo, hi)
			want := (x-lo+k)%(hi-lo) + lo
			if got != want {
				t.Errorf("x=%d k=%d: got %d, want %d", x, k, got, want)
			}
		}
	}
}

func TestCounter(t *testing.T) {
	c := NewCounter(3)
	if c.Over() {
		t.Fatal("fresh counter should not be over")
	}
	if _, err := c.Count(); err != nil {
		t.Fatalf("Count: %v", err)
	}
	if c.Cur() != 2 {
		t.Errorf("expected cur=2, got %d", c.Cur())
	}
	if c.Over() {
		t.Fatal("counter should not be over yet")
	}
	if _, err := c.Count(); err != nil {
		t.Fatalf("Count: %v", err)
	}
	if _, err := c.Count(); err != nil {
		t.Fatalf("Count: %v", err)
	}
	if !c.Over() {
		t.Fatal("counter should be over")
	}
	if _, err := c.Count(); err != ErrCounterOver {
		t.Fatalf("expected ErrCounterOver, got %v", err)
	}
	c.Reset()
	if c.Cur() != 3 {
		t.Errorf("expected cur=3 after reset, got %d", c.Cur())
	}
}
