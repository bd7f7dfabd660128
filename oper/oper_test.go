package oper

import (
	stderrors "errors"
	"testing"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/internal/invariant"
	"github.com/wippyai/xll-runtime/memory"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingReleaser struct {
	released []xll.Addr
	err      error
}

func (r *recordingReleaser) Release(o *Oper) error {
	r.released = append(r.released, o.Addr())
	return r.err
}

func newTestArena(t *testing.T, ptrSize uint32) (*memory.Space, *Arena, *recordingReleaser) {
	t.Helper()
	space := memory.NewSpace(memory.Config{PtrSize: ptrSize, HeapSize: 1 << 16, StackSize: 1 << 12})
	rel := &recordingReleaser{}
	return space, NewArena(space, rel), rel
}

func captureFailures(t *testing.T) *[]invariant.Failure {
	t.Helper()
	var got []invariant.Failure
	prev := invariant.SetHandler(func(f invariant.Failure) { got = append(got, f) })
	t.Cleanup(func() { invariant.SetHandler(prev) })
	return &got
}

func representative() []value.Value {
	m, _ := value.NewMulti([][]any{{1.5, "cell"}, {true, xlcall.ErrNA}})
	return []value.Value{
		value.Num(3.25),
		value.NewStr("hello wide"),
		value.Bool(true),
		value.Err(xlcall.ErrValue),
		value.Int(-42),
		value.SRef{Area: value.Rect{RowFirst: 1, RowLast: 3, ColFirst: 2, ColLast: 5}},
		value.Ref{SheetID: 0xABCD, Areas: []value.Rect{value.Cell(0, 0), value.Cell(9, 9)}},
		m,
		value.Flow{Op: xlcall.FlowRestart, Level: 3, Row: 10, Col: 20},
		value.BigData{Handle: 0x2000, Size: 128},
		value.Missing{},
		value.Nil{},
	}
}

func TestLayout(t *testing.T) {
	tests := []struct {
		ptr  uint32
		want map[value.Kind]uint32
	}{
		{4, map[value.Kind]uint32{
			value.KindNum: 8, value.KindStr: 4, value.KindBool: 4, value.KindSRef: 20,
			value.KindRef: 8, value.KindMulti: 12, value.KindFlow: 16, value.KindBigData: 8,
		}},
		{8, map[value.Kind]uint32{
			value.KindNum: 8, value.KindStr: 8, value.KindBool: 4, value.KindSRef: 20,
			value.KindRef: 16, value.KindMulti: 16, value.KindFlow: 24, value.KindBigData: 16,
		}},
	}
	for _, tt := range tests {
		l := LayoutFor(tt.ptr)
		for k, want := range tt.want {
			got := l.PayloadSize(k)
			if got != want {
				t.Errorf("ptr %d: PayloadSize(%s) = %d, want %d", tt.ptr, k, got, want)
			}
			if got > StorageSize {
				t.Errorf("ptr %d: %s exceeds storage", tt.ptr, k)
			}
		}
	}
	if StorageSize != 24 || TypeOffset != 24 || RecordSize != 32 {
		t.Error("record geometry changed")
	}
	if l := LayoutFor(4); l.MultiRows != 4 || l.FlowOp != 12 || l.RefSheet != 4 {
		t.Errorf("32-bit offsets: %+v", l)
	}
	if l := LayoutFor(8); l.MultiColumns != 12 || l.FlowOp != 16 || l.BigDataSize != 8 {
		t.Errorf("64-bit offsets: %+v", l)
	}
}

func TestConstructGetEveryAlternative(t *testing.T) {
	for _, ptr := range []uint32{4, 8} {
		space, arena, _ := newTestArena(t, ptr)
		for _, v := range representative() {
			o, err := arena.Make(v)
			if err != nil {
				t.Fatalf("ptr %d: Make(%s): %v", ptr, v.Kind(), err)
			}
			if o.Index() != int(v.Kind()) {
				t.Errorf("ptr %d: Index() = %d, want %d", ptr, o.Index(), v.Kind())
			}
			if o.Type() != v.Kind().Type() {
				t.Errorf("ptr %d: Type() = %s", ptr, o.Type())
			}
			got, err := o.Get()
			if err != nil {
				t.Fatalf("ptr %d: Get(%s): %v", ptr, v.Kind(), err)
			}
			if !value.Equal(got, v) {
				t.Errorf("ptr %d: Get(%s) = %#v, want %#v", ptr, v.Kind(), got, v)
			}
			arena.Delete(o)
		}
		if space.Live() != 0 {
			t.Errorf("ptr %d: %d allocations leaked", ptr, space.Live())
		}
	}
}

func TestGetAs(t *testing.T) {
	_, arena, _ := newTestArena(t, 8)
	o, _ := arena.Make(value.NewStr("typed"))
	defer arena.Delete(o)

	s, err := GetAs[value.Str](o)
	if err != nil || s.String() != "typed" {
		t.Fatalf("GetAs[Str] = %q, %v", s.String(), err)
	}
	v, err := GetAs[value.Value](o)
	if err != nil || v.Kind() != value.KindStr {
		t.Errorf("GetAs[Value] = %v, %v", v, err)
	}

	if !invariant.Enabled() {
		return
	}
	failures := captureFailures(t)
	if _, err := GetAs[value.Num](o); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindTypeMismatch}) {
		t.Errorf("GetAs[Num] err = %v", err)
	}
	if len(*failures) != 1 {
		t.Errorf("failures = %d, want 1", len(*failures))
	}
}

func TestCopyRoundTrip(t *testing.T) {
	space, arena, _ := newTestArena(t, 8)
	for _, v := range representative() {
		src, _ := arena.Make(v)
		dst, _ := arena.New()
		if err := dst.CopyFrom(src); err != nil {
			t.Fatalf("CopyFrom(%s): %v", v.Kind(), err)
		}
		if !dst.Equal(src) {
			t.Errorf("%s: copy not equal", v.Kind())
		}
		arena.Delete(src)
		// The copy owns its own memory.
		got, err := dst.Get()
		if err != nil || !value.Equal(got, v) {
			t.Errorf("%s: copy changed after source destroyed: %v", v.Kind(), err)
		}
		arena.Delete(dst)
	}
	if space.Live() != 0 {
		t.Errorf("%d allocations leaked", space.Live())
	}
}

func TestProvenanceStackVersusHeap(t *testing.T) {
	space, arena, _ := newTestArena(t, 8)
	frame := space.PushFrame()
	defer frame.Release()

	local, err := arena.NewIn(frame)
	if err != nil {
		t.Fatal(err)
	}
	if err := local.Construct(value.Num(1)); err != nil {
		t.Fatal(err)
	}
	heap, err := arena.Make(value.Num(1))
	if err != nil {
		t.Fatal(err)
	}
	defer arena.Delete(heap)

	if local.Provenance() != ForeignOwned {
		t.Errorf("stack record provenance = %s, want foreign", local.Provenance())
	}
	if heap.Provenance() != SelfOwned {
		t.Errorf("heap record provenance = %s, want self", heap.Provenance())
	}
	if local.Flags()&xlcall.BitXLFree == 0 || heap.Flags()&xlcall.BitDLLFree == 0 {
		t.Errorf("flags: stack %#x heap %#x", local.Flags(), heap.Flags())
	}
	if local.Provenance() == heap.Provenance() {
		t.Error("provenance flags do not differ")
	}
	if !local.Equal(heap) {
		t.Error("flags must be masked before comparing discriminants")
	}
}

func TestConstructWith(t *testing.T) {
	space, arena, _ := newTestArena(t, 8)
	frame := space.PushFrame()
	defer frame.Release()

	o, _ := arena.NewIn(frame)
	if err := o.ConstructWith(value.NewStr("mine"), SelfOwned); err != nil {
		t.Fatal(err)
	}
	if o.Ownership() != Self {
		t.Errorf("Ownership() = %s, want self", o.Ownership())
	}
	o.Destroy()
	if space.Live() != 0 {
		t.Errorf("explicit self-owned stack record leaked %d", space.Live())
	}

	h, _ := arena.MakeWith(value.Num(2), ForeignOwned)
	if h.Provenance() != ForeignOwned || h.Ownership() != Foreign {
		t.Errorf("MakeWith foreign: %s/%s", h.Provenance(), h.Ownership())
	}
	arena.Delete(h)
}

func TestOwnership(t *testing.T) {
	_, arena, _ := newTestArena(t, 8)
	tests := []struct {
		v    value.Value
		p    Provenance
		want Ownership
	}{
		{value.Missing{}, ForeignOwned, Unowned},
		{value.Nil{}, SelfOwned, Unowned},
		{value.Num(1), SelfOwned, Self},
		{value.NewStr("x"), ForeignOwned, Foreign},
	}
	for _, tt := range tests {
		o, _ := arena.MakeWith(tt.v, tt.p)
		if got := o.Ownership(); got != tt.want {
			t.Errorf("%s/%s: Ownership() = %s, want %s", tt.v.Kind(), tt.p, got, tt.want)
		}
		o.SetProvenance(SelfOwned)
		arena.Delete(o)
	}
}

func TestDestroySelfOwnedReleasesEverything(t *testing.T) {
	space, arena, rel := newTestArena(t, 8)
	inner, _ := value.NewMulti([][]any{{"a", "b"}})
	outer := value.Multi{Rows: 1, Columns: 2, Values: []value.Value{inner, value.NewStr("c")}}

	o, err := arena.Make(outer)
	if err != nil {
		t.Fatal(err)
	}
	// record + outer array + inner array + 3 strings
	if space.Live() != 6 {
		t.Errorf("Live() = %d, want 6", space.Live())
	}
	o.Destroy()
	if space.Live() != 1 {
		t.Errorf("Live() after Destroy = %d, want 1 (the record)", space.Live())
	}
	if o.Type() != xlcall.TypeMissing {
		t.Errorf("Type() after Destroy = %s", o.Type())
	}
	if o.Flags()&xlcall.BitDLLFree == 0 {
		t.Error("Destroy dropped flags")
	}
	if len(rel.released) != 0 {
		t.Error("self-owned destroy called the releaser")
	}
	arena.Delete(o)
}

func TestDestroyForeignOwnedDelegates(t *testing.T) {
	space, arena, rel := newTestArena(t, 8)
	for _, v := range []value.Value{value.NewStr("s"), value.Ref{Areas: []value.Rect{value.Cell(0, 0)}}, value.NewMultiOf(1, 1)} {
		o, _ := arena.MakeWith(v, ForeignOwned)
		before := space.Live()
		o.Destroy()
		if space.Live() != before {
			t.Errorf("%s: foreign destroy freed locally", v.Kind())
		}
		if o.Type() != v.Kind().Type() {
			t.Errorf("%s: discriminant changed to %s", v.Kind(), o.Type())
		}
		o.SetProvenance(SelfOwned)
		arena.Delete(o)
	}
	if len(rel.released) != 3 {
		t.Errorf("releaser called %d times, want 3", len(rel.released))
	}

	// Trivial alternatives never release, whatever the provenance.
	n, _ := arena.MakeWith(value.Num(1), ForeignOwned)
	n.Destroy()
	if len(rel.released) != 3 || n.Type() != xlcall.TypeMissing {
		t.Error("trivial foreign record handed to releaser")
	}
	arena.Delete(n)
	if space.Live() != 0 {
		t.Errorf("Live() = %d", space.Live())
	}
}

func TestDestroyForeignWithoutReleaser(t *testing.T) {
	failures := captureFailures(t)
	space := memory.NewSpace(memory.Config{HeapSize: 1 << 12})
	arena := NewArena(space, nil)
	o, _ := arena.MakeWith(value.NewStr("x"), ForeignOwned)
	o.Destroy()
	if invariant.Enabled() && len(*failures) != 1 {
		t.Errorf("failures = %d, want 1", len(*failures))
	}
}

func TestReleaseFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	_, arena, rel := newTestArena(t, 8)
	rel.err = xlcall.RetFailed.Err()
	o, _ := arena.MakeWith(value.NewStr("x"), ForeignOwned)
	o.Destroy()

	if logs.FilterMessage("release of foreign-owned record failed").Len() != 1 {
		t.Errorf("logs = %v", logs.All())
	}
}

func TestMoveLeavesSourceMissing(t *testing.T) {
	for _, ptr := range []uint32{4, 8} {
		space, arena, _ := newTestArena(t, ptr)
		m, _ := value.NewMulti([][]any{{1, 2}, {3, 4}})
		for _, v := range []value.Value{value.NewStr("moved"), m, value.Num(5)} {
			src, _ := arena.Make(v)
			live := space.Live()
			dst, _ := arena.MakeWith(value.Missing{}, ForeignOwned)

			if err := dst.MoveFrom(src); err != nil {
				t.Fatal(err)
			}
			if space.Live() != live+1 {
				t.Errorf("ptr %d %s: move allocated", ptr, v.Kind())
			}
			if src.Type() != xlcall.TypeMissing || src.Flags()&xlcall.BitDLLFree == 0 {
				t.Errorf("ptr %d %s: source word %#x", ptr, v.Kind(), src.Word())
			}
			raw, _ := space.Read(src.Addr(), StorageSize)
			for i, b := range raw {
				if b != 0 {
					t.Errorf("ptr %d %s: source storage byte %d = %d", ptr, v.Kind(), i, b)
					break
				}
			}
			if dst.Provenance() != SelfOwned {
				t.Errorf("ptr %d: destination did not take the source's provenance", ptr)
			}
			got, _ := dst.Get()
			if !value.Equal(got, v) {
				t.Errorf("ptr %d %s: moved value = %#v", ptr, v.Kind(), got)
			}

			dst.SetProvenance(SelfOwned)
			arena.Delete(dst)
			arena.Delete(src)
		}
		if space.Live() != 0 {
			t.Errorf("ptr %d: Live() = %d", ptr, space.Live())
		}
	}
}

func TestMoveForeignIntoSelfOwned(t *testing.T) {
	space, arena, rel := newTestArena(t, 8)
	src, _ := arena.MakeWith(value.NewStr("host text"), ForeignOwned)
	dst, _ := arena.New()
	if dst.Provenance() != SelfOwned {
		t.Fatalf("fresh heap record provenance = %s", dst.Provenance())
	}

	if err := dst.MoveFrom(src); err != nil {
		t.Fatal(err)
	}
	if dst.Provenance() != ForeignOwned || dst.Ownership() != Foreign {
		t.Errorf("after move: provenance %s ownership %s", dst.Provenance(), dst.Ownership())
	}
	if dst.String() != "host text" {
		t.Errorf("dst = %q", dst.String())
	}

	live := space.Live()
	dst.Destroy()
	if space.Live() != live {
		t.Errorf("foreign payload freed locally: Live() %d -> %d", live, space.Live())
	}
	if len(rel.released) != 1 || rel.released[0] != dst.Addr() {
		t.Errorf("released = %v, want [%#x]", rel.released, dst.Addr())
	}

	dst.SetProvenance(SelfOwned)
	arena.Delete(dst)
	arena.Delete(src)
	if space.Live() != 0 {
		t.Errorf("Live() = %d", space.Live())
	}
}

func TestAssign(t *testing.T) {
	space, arena, _ := newTestArena(t, 8)
	dst, _ := arena.Make(value.NewStr("old"))
	src, _ := arena.Make(value.NewStr("new"))

	if err := dst.Assign(src); err != nil {
		t.Fatal(err)
	}
	if dst.String() != "new" {
		t.Errorf("dst = %q", dst.String())
	}
	// two records and two strings; the old string was released
	if space.Live() != 4 {
		t.Errorf("Live() = %d, want 4", space.Live())
	}
	if err := dst.Assign(dst); err != nil || dst.String() != "new" {
		t.Errorf("self-assign: %v %q", err, dst.String())
	}

	other, _ := arena.Make(value.Int(7))
	if err := dst.AssignMove(other); err != nil {
		t.Fatal(err)
	}
	if dst.Type() != xlcall.TypeInt || other.Type() != xlcall.TypeMissing {
		t.Errorf("AssignMove: dst %s other %s", dst.Type(), other.Type())
	}
	arena.Delete(dst)
	arena.Delete(src)
	arena.Delete(other)
	if space.Live() != 0 {
		t.Errorf("Live() = %d", space.Live())
	}
}

func TestEmplaceFailureKeepsPayload(t *testing.T) {
	space, arena, _ := newTestArena(t, 4)
	o, _ := arena.Make(value.NewStr("keep"))
	live := space.Live()

	err := o.Emplace(value.Flow{Op: xlcall.FlowGoto, Level: 1 << 40})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindOverflow}) {
		t.Fatalf("err = %v", err)
	}
	if o.String() != "keep" || space.Live() != live {
		t.Errorf("payload changed: %q live %d", o.String(), space.Live())
	}

	bad := value.Multi{Rows: 1, Columns: 2, Values: []value.Value{value.NewStr("a"), value.Flow{Level: 1 << 40}}}
	if err := o.Emplace(bad); err == nil {
		t.Fatal("expected error")
	}
	if space.Live() != live {
		t.Errorf("partial lowering leaked: %d vs %d", space.Live(), live)
	}
	arena.Delete(o)
}

func TestSet(t *testing.T) {
	_, arena, _ := newTestArena(t, 8)
	o, _ := arena.New()
	defer arena.Delete(o)

	tests := []struct {
		src  any
		want xlcall.Type
	}{
		{"text", xlcall.TypeStr},
		{1.5, xlcall.TypeNum},
		{7, xlcall.TypeNum},
		{int16(7), xlcall.TypeInt},
		{true, xlcall.TypeBool},
		{xlcall.ErrDiv0, xlcall.TypeErr},
		{value.Nil{}, xlcall.TypeNil},
	}
	for _, tt := range tests {
		if err := o.Set(tt.src); err != nil {
			t.Fatalf("Set(%#v): %v", tt.src, err)
		}
		if o.Type() != tt.want {
			t.Errorf("Set(%#v) type = %s, want %s", tt.src, o.Type(), tt.want)
		}
	}
	if err := o.Set(struct{}{}); err == nil {
		t.Error("Set(struct{}) succeeded")
	}
	if o.Type() != xlcall.TypeNil {
		t.Error("failed Set changed the record")
	}
}

func TestIndexUnknown(t *testing.T) {
	space, arena, _ := newTestArena(t, 8)
	o, _ := arena.New()
	_ = space.WriteU32(o.Addr()+TypeOffset, 0x0200|xlcall.BitDLLFree)
	if o.Index() != -1 {
		t.Errorf("Index() = %d, want -1", o.Index())
	}
	if _, err := o.Get(); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindInvalidVariant}) {
		t.Errorf("Get err = %v", err)
	}
}

func TestFlags(t *testing.T) {
	failures := captureFailures(t)
	_, arena, _ := newTestArena(t, 8)
	o, _ := arena.Make(value.Num(1))
	defer arena.Delete(o)

	o.SetFlags(xlcall.BitXLFree)
	if o.Flags() != xlcall.BitXLFree|xlcall.BitDLLFree {
		t.Errorf("Flags() = %#x", o.Flags())
	}
	o.ClearFlags(xlcall.BitDLLFree)
	if o.Flags() != xlcall.BitXLFree || o.Type() != xlcall.TypeNum {
		t.Errorf("after clear: flags %#x type %s", o.Flags(), o.Type())
	}
	o.SetFlags(0x2000)
	if o.Flags()&0x2000 != 0 {
		t.Error("reserved bit set")
	}
	if invariant.Enabled() && len(*failures) != 1 {
		t.Errorf("failures = %d, want 1", len(*failures))
	}
}

func TestRejectMalformedRecords(t *testing.T) {
	space, arena, _ := newTestArena(t, 8)
	o, _ := arena.Make(value.NewMultiOf(1, 1))
	defer arena.Delete(o)

	l := arena.Layout()
	_ = space.WriteU32(o.Addr()+xll.Addr(l.MultiRows), 0xFFFFFFFF)
	if _, err := o.Get(); err == nil {
		t.Error("negative rows accepted")
	}
	_ = space.WriteU32(o.Addr()+xll.Addr(l.MultiRows), 1)

	s, _ := arena.Make(value.SRef{Area: value.Cell(0, 0)})
	defer arena.Delete(s)
	_ = space.WriteU16(s.Addr(), 2)
	if _, err := s.Get(); err == nil {
		t.Error("sref count 2 accepted")
	}

	bad := value.Multi{Rows: 2, Columns: 2, Values: []value.Value{value.Num(1)}}
	if _, err := arena.Make(bad); err == nil {
		t.Error("short array accepted")
	}
}

func TestNewArray(t *testing.T) {
	space, arena, _ := newTestArena(t, 8)
	addr, err := arena.NewArray(3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		o := arena.At(addr + xll.Addr(i*RecordSize))
		if o.Type() != xlcall.TypeNil || o.Provenance() != SelfOwned {
			t.Errorf("element %d: %s/%s", i, o.Type(), o.Provenance())
		}
	}
	space.Free(addr)
	if a, err := arena.NewArray(0); a != 0 || err != nil {
		t.Errorf("NewArray(0) = %v, %v", a, err)
	}
}

func TestHandleAndReference(t *testing.T) {
	_, arena, _ := newTestArena(t, 8)
	h, err := arena.NewHandle(0x77)
	if err != nil {
		t.Fatal(err)
	}
	if h.ID() != 0x77 {
		t.Errorf("ID() = %#x", h.ID())
	}
	if _, err := arena.HandleAt(h.Addr()); err != nil {
		t.Errorf("HandleAt: %v", err)
	}
	n, _ := arena.Make(value.Num(1))
	if _, err := arena.HandleAt(n.Addr()); err == nil {
		t.Error("HandleAt accepted a number")
	}

	r, _ := arena.Make(value.Ref{SheetID: 1, Areas: []value.Rect{value.Cell(1, 1), value.Cell(2, 2)}})
	ref := arena.ReferenceAt(r.Addr())
	if !ref.IsReference() || len(ref.Areas()) != 2 {
		t.Errorf("Reference: %v %v", ref.IsReference(), ref.Areas())
	}
	plain := arena.ReferenceAt(n.Addr())
	if plain.IsReference() || plain.Areas() != nil {
		t.Error("plain value reported as reference")
	}
	arena.Delete(&h.Oper)
	arena.Delete(n)
	arena.Delete(r)
}
