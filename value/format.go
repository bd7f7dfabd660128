package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/xll-runtime/xlcall"
)

// Format renders v the way a cell would display it. Multi renders as a
// braced array literal and references in R1C1 notation.
func Format(v Value) string {
	switch x := v.(type) {
	case Num:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case Str:
		return x.String()
	case Bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case Err:
		return xlcall.Error(x).String()
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case SRef:
		return formatRect(x.Area)
	case Ref:
		areas := make([]string, len(x.Areas))
		for i, a := range x.Areas {
			areas[i] = formatRect(a)
		}
		return fmt.Sprintf("[%d]!(%s)", x.SheetID, strings.Join(areas, ","))
	case Multi:
		var b strings.Builder
		b.WriteByte('{')
		for r := 0; r < x.Rows; r++ {
			if r > 0 {
				b.WriteByte(';')
			}
			for c := 0; c < x.Columns; c++ {
				if c > 0 {
					b.WriteByte(',')
				}
				e := x.At(r, c)
				if s, ok := e.(Str); ok {
					b.WriteString(strconv.Quote(s.String()))
				} else {
					b.WriteString(Format(e))
				}
			}
		}
		b.WriteByte('}')
		return b.String()
	case Flow:
		return fmt.Sprintf("flow(%s)", x.Op)
	case BigData:
		return fmt.Sprintf("bigdata(%#x, %d)", uint64(x.Handle), x.Size)
	case Missing, Nil, nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func formatRect(r Rect) string {
	if r.RowFirst == r.RowLast && r.ColFirst == r.ColLast {
		return fmt.Sprintf("R%dC%d", r.RowFirst+1, r.ColFirst+1)
	}
	return fmt.Sprintf("R%dC%d:R%dC%d", r.RowFirst+1, r.ColFirst+1, r.RowLast+1, r.ColLast+1)
}
