package value

import "slices"

// Equal compares kinds first, then payloads. Multi compares element-wise
// and Str compares code units. Nil interfaces compare as Nil.
func Equal(a, b Value) bool {
	if a == nil {
		a = Nil{}
	}
	if b == nil {
		b = Nil{}
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch x := a.(type) {
	case Num:
		return x == b.(Num)
	case Str:
		return x.Text.Equal(b.(Str).Text)
	case Bool:
		return x == b.(Bool)
	case Err:
		return x == b.(Err)
	case Int:
		return x == b.(Int)
	case SRef:
		return x == b.(SRef)
	case Ref:
		y := b.(Ref)
		return x.SheetID == y.SheetID && slices.Equal(x.Areas, y.Areas)
	case Multi:
		y := b.(Multi)
		if x.Rows != y.Rows || x.Columns != y.Columns {
			return false
		}
		for r := 0; r < x.Rows; r++ {
			for c := 0; c < x.Columns; c++ {
				if !Equal(x.At(r, c), y.At(r, c)) {
					return false
				}
			}
		}
		return true
	case Flow:
		return x == b.(Flow)
	case BigData:
		return x == b.(BigData)
	case Missing, Nil:
		return true
	}
	return false
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch x := v.(type) {
	case Str:
		return Str{Text: x.Text.Clone()}
	case Ref:
		return Ref{SheetID: x.SheetID, Areas: slices.Clone(x.Areas)}
	case Multi:
		out := Multi{Rows: x.Rows, Columns: x.Columns, Values: make([]Value, len(x.Values))}
		for i, e := range x.Values {
			out.Values[i] = Clone(e)
		}
		return out
	case nil:
		return Nil{}
	}
	return v
}
