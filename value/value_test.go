package value

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/xlcall"
)

func sample() []Value {
	m, _ := NewMulti([][]any{{1.0, "a"}, {true}})
	return []Value{
		Num(2.5),
		NewStr("hello"),
		Bool(true),
		Err(xlcall.ErrDiv0),
		Int(-3),
		SRef{Area: Rect{RowFirst: 0, RowLast: 4, ColFirst: 1, ColLast: 2}},
		Ref{SheetID: 7, Areas: []Rect{Cell(0, 0), Cell(3, 3)}},
		m,
		Flow{Op: xlcall.FlowGoto, Level: 9, Row: 3, Col: 4},
		BigData{Handle: 0x1000, Size: 64},
		Missing{},
		Nil{},
	}
}

func TestKindTable(t *testing.T) {
	for i, v := range sample() {
		k := v.Kind()
		if int(k) != i {
			t.Errorf("%T: Kind() = %d, want %d", v, k, i)
		}
		back, ok := KindOf(k.Type() | xlcall.Type(xlcall.BitDLLFree))
		if !ok || back != k {
			t.Errorf("KindOf(%s) = %s, %v", k.Type(), back, ok)
		}
	}
	if _, ok := KindOf(0x0200); ok {
		t.Error("KindOf(0x200) reported known")
	}
	if Kind(42).Valid() || Kind(42).Type() != 0 || Kind(42).String() != "kind(42)" {
		t.Error("invalid kind handling")
	}
	if KindBigData.Type() != xlcall.TypeBigData || KindStr.String() != "str" {
		t.Error("kind table mismatch")
	}
	if !KindNum.Trivial() || KindStr.Trivial() || KindMulti.Trivial() || KindRef.Trivial() {
		t.Error("Trivial mismatch")
	}
}

func TestEqualAndClone(t *testing.T) {
	values := sample()
	for _, v := range values {
		c := Clone(v)
		if !Equal(v, c) {
			t.Errorf("%s: clone not equal", v.Kind())
		}
	}
	for i, a := range values {
		for j, b := range values {
			if (i == j) != Equal(a, b) {
				t.Errorf("Equal(%s, %s) = %v", a.Kind(), b.Kind(), !(i == j))
			}
		}
	}

	if Equal(Num(1), Num(2)) || Equal(NewStr("a"), NewStr("b")) {
		t.Error("payload mismatch compared equal")
	}
	if !Equal(nil, Nil{}) {
		t.Error("nil should equal Nil")
	}
	if Equal(Ref{SheetID: 1}, Ref{SheetID: 2}) {
		t.Error("sheet ids differ")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := NewStr("abc")
	c := Clone(s).(Str)
	c.Text.Units()[0] = 'X'
	if s.String() != "abc" {
		t.Error("Str clone shares buffer")
	}

	r := Ref{Areas: []Rect{Cell(1, 1)}}
	rc := Clone(r).(Ref)
	rc.Areas[0] = Cell(5, 5)
	if r.Areas[0] != Cell(1, 1) {
		t.Error("Ref clone shares areas")
	}

	m, _ := NewMulti([][]any{{"x"}})
	mc := Clone(m).(Multi)
	mc.Set(0, 0, Num(1))
	if m.At(0, 0).Kind() != KindStr {
		t.Error("Multi clone shares elements")
	}
}

func TestNewMulti(t *testing.T) {
	m, err := NewMulti([][]any{
		{1, "two", true},
		{xlcall.ErrNA},
		nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.Rows != 3 || m.Columns != 3 || m.Len() != 9 {
		t.Fatalf("dims = %dx%d", m.Rows, m.Columns)
	}
	want := []Value{Num(1), NewStr("two"), Bool(true), Err(xlcall.ErrNA), Nil{}, Nil{}, Nil{}, Nil{}, Nil{}}
	for i, w := range want {
		if got := m.At(i/3, i%3); !Equal(got, w) {
			t.Errorf("At(%d,%d) = %#v, want %#v", i/3, i%3, got, w)
		}
	}
	if m.At(5, 0).Kind() != KindNil || m.At(-1, 0).Kind() != KindNil {
		t.Error("out of range At should be Nil")
	}

	empty, err := NewMulti(nil)
	if err != nil || empty.Len() != 0 {
		t.Errorf("NewMulti(nil) = %v, %v", empty, err)
	}
}

func TestNewMultiErrorPath(t *testing.T) {
	_, err := NewMulti([][]any{{1}, {2, struct{}{}}})
	if !stderrors.Is(err, errNoViable) {
		t.Fatalf("err = %v", err)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || len(e.Path) == 0 || e.Path[0] != "[1][1]" {
		t.Errorf("path = %v", e.Path)
	}

	// The cached resolution error must not carry the path.
	_, again := From(struct{}{})
	if stderrors.As(again, &e) && len(e.Path) != 0 {
		t.Errorf("cached error mutated: %v", e.Path)
	}
}

func TestNewMultiOf(t *testing.T) {
	m := NewMultiOf(2, 2)
	m.Set(1, 1, Num(4))
	m.Set(9, 9, Num(1))
	m.Set(0, 0, nil)
	if !Equal(m.At(1, 1), Num(4)) || m.At(0, 0).Kind() != KindNil {
		t.Error("Set/At mismatch")
	}
	if NewMultiOf(0, 3).Len() != 0 {
		t.Error("empty NewMultiOf")
	}
}

func TestFormat(t *testing.T) {
	m, _ := NewMulti([][]any{{1, "a"}, {true, xlcall.ErrRef}})
	tests := []struct {
		v    Value
		want string
	}{
		{Num(1.25), "1.25"},
		{NewStr("txt"), "txt"},
		{Bool(false), "FALSE"},
		{Err(xlcall.ErrNum), "#NUM!"},
		{Int(12), "12"},
		{SRef{Area: Cell(0, 0)}, "R1C1"},
		{SRef{Area: Rect{RowFirst: 0, RowLast: 1, ColFirst: 0, ColLast: 2}}, "R1C1:R2C3"},
		{Ref{SheetID: 3, Areas: []Rect{Cell(1, 1)}}, "[3]!(R2C2)"},
		{m, `{1,"a";TRUE,#REF!}`},
		{Missing{}, ""},
		{Nil{}, ""},
	}
	for _, tt := range tests {
		if got := Format(tt.v); got != tt.want {
			t.Errorf("Format(%#v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
