package arena

import "testing"

func TestNonOverlapping(t *testing.T) {
	a := New()
	x := a.Alloc(4)
	y := a.Alloc(4)
	x[0] = 123
	y[0] = 45
	if x[0] != 123 || y[0] != 45 {
		t.Fatalf("allocations overlap: x=%v y=%v", x, y)
	}
}

func TestAllocateOverBlockSize(t *testing.T) {
	a := WithBlockSize(256)
	a.Alloc(178)
	a.Alloc(128)
	if a.MemoryUsage() < 306 {
		t.Fatalf("expected at least 306 bytes claimed, got %d", a.MemoryUsage())
	}
}

func TestEarlyResetPanics(t *testing.T) {
	a := New()
	a.Alloc(4)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Reset with a live allocation to panic")
		}
	}()
	a.Reset()
}

func TestResetReusesChain(t *testing.T) {
	a := New()
	x := a.Alloc(4)
	a.Free()
	a.Reset()
	if a.AllocCount() != 0 {
		t.Fatalf("expected zero live allocations after reset, got %d", a.AllocCount())
	}
	y := a.Alloc(4)
	_ = x
	if len(y) != 4 {
		t.Fatalf("expected reused block to serve a fresh 4-byte allocation")
	}
}

func TestGrowInPlace(t *testing.T) {
	a := New()
	x := a.Alloc(4)
	y := a.Grow(x, 8)
	if &x[0] != &y[0] {
		t.Fatalf("expected Grow of the most recent allocation to reuse the same backing array")
	}
}
