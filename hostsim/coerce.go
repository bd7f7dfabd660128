package hostsim

import (
	"math"
	"strconv"
	"strings"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
)

// coerceOrder is the order in which target kinds are tried.
var coerceOrder = []value.Kind{
	value.KindNum, value.KindInt, value.KindBool, value.KindStr, value.KindErr, value.KindMulti,
}

// coerce converts a value to the first kind in the mask that accepts it.
// References cannot be evaluated and fail with RetUncalced.
func (h *Host) coerce(args []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	src := arg(args, 0)
	mask, ok := arg(args, 1).(value.Int)
	if !ok || mask == 0 {
		return nil, xlcall.RetInvXloper
	}

	switch src.(type) {
	case value.SRef, value.Ref:
		return nil, xlcall.RetUncalced
	}
	if uint32(mask)&uint32(src.Kind().Type()) != 0 {
		return value.Clone(src), xlcall.RetSuccess
	}

	// Arrays coerce to scalars through their top-left cell.
	if m, isMulti := src.(value.Multi); isMulti {
		src = m.At(0, 0)
		if uint32(mask)&uint32(src.Kind().Type()) != 0 {
			return value.Clone(src), xlcall.RetSuccess
		}
	}

	for _, k := range coerceOrder {
		if uint32(mask)&uint32(k.Type()) == 0 {
			continue
		}
		if v, ok := convert(src, k); ok {
			return v, xlcall.RetSuccess
		}
	}
	return value.Err(xlcall.ErrValue), xlcall.RetSuccess
}

func convert(src value.Value, k value.Kind) (value.Value, bool) {
	switch k {
	case value.KindNum:
		f, ok := toFloat(src)
		return value.Num(f), ok
	case value.KindInt:
		f, ok := toFloat(src)
		if !ok || f < math.MinInt32 || f > math.MaxInt32 {
			return nil, false
		}
		return value.Int(int32(math.Trunc(f))), true
	case value.KindBool:
		switch x := src.(type) {
		case value.Num:
			return value.Bool(x != 0), true
		case value.Int:
			return value.Bool(x != 0), true
		case value.Str:
			switch strings.ToUpper(x.String()) {
			case "TRUE":
				return value.Bool(true), true
			case "FALSE":
				return value.Bool(false), true
			}
		case value.Missing, value.Nil:
			return value.Bool(false), true
		}
	case value.KindStr:
		switch src.(type) {
		case value.Err, value.Flow, value.BigData:
			return nil, false
		}
		return value.NewStr(value.Format(src)), true
	case value.KindErr:
		if e, ok := src.(value.Err); ok {
			return e, true
		}
		return value.Err(xlcall.ErrValue), true
	case value.KindMulti:
		return value.Multi{Rows: 1, Columns: 1, Values: []value.Value{value.Clone(src)}}, true
	}
	return nil, false
}

func toFloat(src value.Value) (float64, bool) {
	switch x := src.(type) {
	case value.Num:
		return float64(x), true
	case value.Int:
		return float64(x), true
	case value.Bool:
		if x {
			return 1, true
		}
		return 0, true
	case value.Str:
		f, err := strconv.ParseFloat(strings.TrimSpace(x.String()), 64)
		return f, err == nil
	case value.Missing, value.Nil:
		return 0, true
	}
	return 0, false
}
