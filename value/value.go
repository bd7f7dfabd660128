package value

import (
	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/pstring"
	"github.com/wippyai/xll-runtime/xlcall"
)

// Value is one alternative of the host's tagged union.
type Value interface {
	Kind() Kind
	isValue()
}

// Num is a floating point number.
type Num float64

// Str is a wide length-prefixed string.
type Str struct {
	Text pstring.Wide
}

// Bool is a boolean.
type Bool bool

// Err is a worksheet error.
type Err xlcall.Error

// Int is a 32-bit integer.
type Int int32

// Rect is a rectangular cell range. Bounds are zero-based and inclusive.
type Rect struct {
	RowFirst int32
	RowLast  int32
	ColFirst int32
	ColLast  int32
}

// SRef is a single-area reference to the current sheet.
type SRef struct {
	Area Rect
}

// Ref is a multi-area reference to a sheet.
type Ref struct {
	SheetID uint64
	Areas   []Rect
}

// Multi is a two-dimensional array stored row-major.
type Multi struct {
	Rows    int
	Columns int
	Values  []Value
}

// Flow is a macro flow-control record. Level holds the restart level, the
// pause toolbar control or the goto sheet id depending on Op.
type Flow struct {
	Op    xlcall.FlowOp
	Level uint64
	Row   int32
	Col   int32
}

// BigData is an opaque handle to a host-side blob.
type BigData struct {
	Handle xll.Addr
	Size   int32
}

// Missing marks an omitted argument.
type Missing struct{}

// Nil marks an empty value.
type Nil struct{}

func (Num) Kind() Kind     { return KindNum }
func (Str) Kind() Kind     { return KindStr }
func (Bool) Kind() Kind    { return KindBool }
func (Err) Kind() Kind     { return KindErr }
func (Int) Kind() Kind     { return KindInt }
func (SRef) Kind() Kind    { return KindSRef }
func (Ref) Kind() Kind     { return KindRef }
func (Multi) Kind() Kind   { return KindMulti }
func (Flow) Kind() Kind    { return KindFlow }
func (BigData) Kind() Kind { return KindBigData }
func (Missing) Kind() Kind { return KindMissing }
func (Nil) Kind() Kind     { return KindNil }

func (Num) isValue()     {}
func (Str) isValue()     {}
func (Bool) isValue()    {}
func (Err) isValue()     {}
func (Int) isValue()     {}
func (SRef) isValue()    {}
func (Ref) isValue()     {}
func (Multi) isValue()   {}
func (Flow) isValue()    {}
func (BigData) isValue() {}
func (Missing) isValue() {}
func (Nil) isValue()     {}

// NewStr builds a Str from UTF-8 text.
func NewStr(s string) Str { return Str{Text: pstring.NewWide(s)} }

func (s Str) String() string { return s.Text.String() }

// Rows returns the number of rows spanned.
func (r Rect) Rows() int32 { return r.RowLast - r.RowFirst + 1 }

// Columns returns the number of columns spanned.
func (r Rect) Columns() int32 { return r.ColLast - r.ColFirst + 1 }

// Cell returns a one-cell rectangle.
func Cell(row, col int32) Rect {
	return Rect{RowFirst: row, RowLast: row, ColFirst: col, ColLast: col}
}

// At returns the element at row r, column c, or Nil when out of range.
func (m Multi) At(r, c int) Value {
	if r < 0 || c < 0 || r >= m.Rows || c >= m.Columns {
		return Nil{}
	}
	v := m.Values[r*m.Columns+c]
	if v == nil {
		return Nil{}
	}
	return v
}

// Len returns the number of elements.
func (m Multi) Len() int { return m.Rows * m.Columns }
