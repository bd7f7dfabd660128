package pstring

import (
	"strings"
	"testing"

	"github.com/wippyai/xll-runtime/memory"
	"github.com/wippyai/xll-runtime/xlcall"
)

func TestNarrowLiteral(t *testing.T) {
	p := NewNarrow("Literal")
	if p.Size() != 7 {
		t.Errorf("Size() = %d, want 7", p.Size())
	}
	if p.Raw()[0] != 7 {
		t.Errorf("length unit = %d, want 7", p.Raw()[0])
	}
	if p.String() != "Literal" {
		t.Errorf("String() = %q", p.String())
	}
}

func TestNarrowWideRoundTrip(t *testing.T) {
	tests := []string{"", "a", "Literal", "hello, world", strings.Repeat("x", 255)}
	for _, s := range tests {
		n := NewNarrow(s)
		w := ToWide(n)
		if w.Size() != len(s) {
			t.Errorf("%q: wide size = %d", s, w.Size())
		}
		back := ToNarrow(w)
		if string(back.Units()) != s {
			t.Errorf("round trip %q -> %q", s, string(back.Units()))
		}
		if !back.Equal(n) {
			t.Errorf("%q: round trip not equal", s)
		}
	}
}

func TestWideNonASCII(t *testing.T) {
	tests := []struct {
		in    string
		units int
	}{
		{"héllo", 5},
		{"日本語", 3},
		{"a😀b", 4},
	}
	for _, tt := range tests {
		w := NewWide(tt.in)
		if w.Size() != tt.units {
			t.Errorf("NewWide(%q).Size() = %d, want %d", tt.in, w.Size(), tt.units)
		}
		if w.String() != tt.in {
			t.Errorf("NewWide(%q).String() = %q", tt.in, w.String())
		}
		if got := ToNarrow(w).String(); got != tt.in {
			t.Errorf("ToNarrow(%q) = %q", tt.in, got)
		}
	}

	w := NewWide("a😀")
	want := []uint16{'a', 0xD83D, 0xDE00}
	for i, u := range w.Units() {
		if u != want[i] {
			t.Errorf("unit %d = %#x, want %#x", i, u, want[i])
		}
	}
}

func TestInvalidUTF8(t *testing.T) {
	w := NewWide("a\xffb")
	if w.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", w.Size())
	}
	if w.Units()[1] != 0xFFFD {
		t.Errorf("invalid byte = %#x, want U+FFFD", w.Units()[1])
	}
}

func TestTruncation(t *testing.T) {
	long := strings.Repeat("y", 300)
	if n := NewNarrow(long); n.Size() != xlcall.MaxNarrowLength {
		t.Errorf("narrow Size() = %d, want %d", n.Size(), xlcall.MaxNarrowLength)
	}

	huge := strings.Repeat("z", 40000)
	if w := NewWide(huge); w.Size() != xlcall.MaxWideLength {
		t.Errorf("wide Size() = %d, want %d", w.Size(), xlcall.MaxWideLength)
	}

	units := make([]uint16, 40000)
	if w := FromUnits(units); w.Size() != xlcall.MaxWideLength {
		t.Errorf("FromUnits Size() = %d", w.Size())
	}

	// A multi-byte rune straddling the narrow limit is dropped whole.
	edge := strings.Repeat("a", 254) + "é"
	n := NewNarrow(edge)
	if n.Size() != 254 {
		t.Errorf("rune-boundary truncation Size() = %d, want 254", n.Size())
	}

	// A surrogate pair straddling the wide limit is dropped whole.
	pair := strings.Repeat("a", xlcall.MaxWideLength-1) + "😀"
	if w := NewWide(pair); w.Size() != xlcall.MaxWideLength-1 {
		t.Errorf("surrogate truncation Size() = %d", w.Size())
	}
}

func TestNullAndEmpty(t *testing.T) {
	var p Wide
	if !p.IsNull() || !p.Empty() || p.Size() != 0 || p.Units() != nil {
		t.Error("zero value is not null and empty")
	}
	e := NewWide("")
	if e.IsNull() || !e.Empty() {
		t.Error("NewWide(\"\") should be empty but not null")
	}
	if !p.Equal(e) {
		t.Error("null should equal empty")
	}
	if !ToWide(Narrow{}).IsNull() || !ToNarrow(Wide{}).IsNull() {
		t.Error("conversion of null must stay null")
	}
}

func TestCloneAndMove(t *testing.T) {
	a := NewWide("abc")
	b := a.Clone()
	b.Units()[0] = 'X'
	if a.String() != "abc" {
		t.Errorf("Clone shares buffer: %q", a.String())
	}

	c := a.Move()
	if !a.IsNull() {
		t.Error("Move did not null source")
	}
	if c.String() != "abc" {
		t.Errorf("moved value = %q", c.String())
	}

	c.Free()
	if !c.IsNull() {
		t.Error("Free did not null")
	}
	if !(Wide{}).Clone().IsNull() {
		t.Error("Clone of null is not null")
	}
}

func TestStoreLoad(t *testing.T) {
	space := memory.NewSpace(memory.Config{HeapSize: 1 << 16})

	w := NewWide("wide text")
	addr, err := w.Store(space, space)
	if err != nil {
		t.Fatal(err)
	}
	if size, _ := space.SizeOf(addr); size != w.ByteSize() {
		t.Errorf("allocated %d bytes, want %d", size, w.ByteSize())
	}
	got, err := LoadWide(space, addr)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(w) {
		t.Errorf("LoadWide = %q", got.String())
	}

	n := NewNarrow("narrow")
	naddr, err := n.Store(space, space)
	if err != nil {
		t.Fatal(err)
	}
	gotN, err := LoadNarrow(space, naddr)
	if err != nil {
		t.Fatal(err)
	}
	if gotN.String() != "narrow" {
		t.Errorf("LoadNarrow = %q", gotN.String())
	}

	space.Free(addr)
	space.Free(naddr)
	if space.Live() != 0 {
		t.Errorf("Live() = %d", space.Live())
	}

	if _, err := LoadWide(space, 0); err == nil {
		t.Error("LoadWide(0) succeeded")
	}
	if _, err := LoadNarrow(space, 0); err == nil {
		t.Error("LoadNarrow(0) succeeded")
	}
}

func TestLoadWideRejectsOversizedLength(t *testing.T) {
	space := memory.NewSpace(memory.Config{HeapSize: 1 << 16})
	addr, _ := space.Alloc(4, 2)
	_ = space.WriteU16(addr, 0x9000)
	if _, err := LoadWide(space, addr); err == nil {
		t.Error("expected error for length above 32767")
	}
}

func TestMaxLen(t *testing.T) {
	if MaxLen[uint8]() != 255 || MaxLen[uint16]() != 32767 {
		t.Errorf("MaxLen = %d/%d", MaxLen[uint8](), MaxLen[uint16]())
	}
}
