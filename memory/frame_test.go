package memory

import (
	"testing"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/internal/invariant"
)

func addr(v uint64) xll.Addr { return xll.Addr(v) }

func TestFrameAllocOnStack(t *testing.T) {
	s := NewSpace(Config{HeapSize: 256, StackSize: 256})
	limit, base := s.StackBounds()

	f := s.PushFrame()
	a, err := f.Alloc(32, 8)
	if err != nil {
		t.Fatal(err)
	}
	if a < limit || a >= base {
		t.Errorf("frame addr %#x outside stack [%#x, %#x]", a, limit, base)
	}
	if !s.OnStack(a) {
		t.Error("OnStack(frame addr) = false")
	}
	if a%8 != 0 {
		t.Errorf("frame addr %#x not aligned", a)
	}
	if s.StackUsed() < 32 {
		t.Errorf("StackUsed() = %d", s.StackUsed())
	}
	if !s.OnStack(base) || !s.OnStack(limit) {
		t.Error("stack bounds are inclusive")
	}

	f.Release()
	if s.StackUsed() != 0 || s.Depth() != 0 {
		t.Errorf("after release: used=%d depth=%d", s.StackUsed(), s.Depth())
	}
	f.Release()
	if s.Depth() != 0 {
		t.Error("double release changed depth")
	}
}

func TestFrameOverflow(t *testing.T) {
	s := NewSpace(Config{HeapSize: 64, StackSize: 64})
	f := s.PushFrame()
	defer f.Release()
	if _, err := f.Alloc(48, 8); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Alloc(32, 8); err == nil {
		t.Error("expected stack overflow")
	}
}

func TestFrameNesting(t *testing.T) {
	var failures []invariant.Failure
	prev := invariant.SetHandler(func(f invariant.Failure) { failures = append(failures, f) })
	defer invariant.SetHandler(prev)

	s := NewSpace(Config{HeapSize: 64, StackSize: 256})
	outer := s.PushFrame()
	_, _ = outer.Alloc(16, 8)
	inner := s.PushFrame()

	if _, err := outer.Alloc(8, 8); err == nil {
		t.Error("allocation in outer frame while inner is open succeeded")
	}

	outer.Release()
	if invariant.Enabled() && len(failures) != 1 {
		t.Errorf("failures = %d, want 1", len(failures))
	}
	if s.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", s.Depth())
	}

	inner.Release()
	outer.Release()
	if s.Depth() != 0 || s.StackUsed() != 0 {
		t.Errorf("depth=%d used=%d", s.Depth(), s.StackUsed())
	}
	if _, err := outer.Alloc(8, 8); err == nil {
		t.Error("allocation in released frame succeeded")
	}
}

func TestFrameAllocAligned(t *testing.T) {
	s := NewSpace(Config{PtrSize: 4, HeapSize: 64, StackSize: 64})
	f := s.PushFrame()
	defer f.Release()
	a, err := f.AllocAligned(5)
	if err != nil {
		t.Fatal(err)
	}
	if a%4 != 0 || s.StackUsed() != 8 {
		t.Errorf("addr=%#x used=%d", a, s.StackUsed())
	}
}

func TestAllocationList(t *testing.T) {
	s := NewSpace(Config{HeapSize: 256})
	al := NewAllocationList()
	for i := 0; i < 3; i++ {
		p, err := s.Alloc(16, 8)
		if err != nil {
			t.Fatal(err)
		}
		al.Add(p)
	}
	al.Add(0)
	if al.Count() != 4 {
		t.Errorf("Count() = %d", al.Count())
	}
	al.FreeAndRelease(s)
	if s.Live() != 0 {
		t.Errorf("Live() = %d after FreeAndRelease", s.Live())
	}

	al = NewAllocationList()
	if al.Count() != 0 {
		t.Errorf("pooled list not reset: %d", al.Count())
	}
	al.Free(nil)
	al.Release()
}
