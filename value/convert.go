package value

import (
	"reflect"

	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/pstring"
	"github.com/wippyai/xll-runtime/xlcall"
)

// Convert resolves the best alternative of set for src and builds it.
func Convert(src any, set AlternativeSet) (Value, error) {
	if src == nil {
		_, err := Resolve(nil, set)
		return nil, err
	}
	rv := reflect.ValueOf(src)
	kind, err := Resolve(rv.Type(), set)
	if err != nil {
		return nil, err
	}
	if v, ok := src.(Value); ok && v.Kind() == kind {
		return v, nil
	}
	return build(kind, rv)
}

// From converts src with the full alternative set.
func From(src any) (Value, error) {
	return Convert(src, Alternatives)
}

// MustFrom is From for literals known to convert. It panics on failure.
func MustFrom(src any) Value {
	v, err := From(src)
	if err != nil {
		panic(err)
	}
	return v
}

func build(kind Kind, rv reflect.Value) (Value, error) {
	switch kind {
	case KindNum:
		switch {
		case rv.CanFloat():
			return Num(rv.Float()), nil
		case rv.CanInt():
			return Num(float64(rv.Int())), nil
		case rv.CanUint():
			return Num(float64(rv.Uint())), nil
		}
	case KindInt:
		switch {
		case rv.CanInt():
			return Int(int32(rv.Int())), nil
		case rv.CanUint():
			return Int(int32(rv.Uint())), nil
		}
	case KindBool:
		return Bool(rv.Bool()), nil
	case KindErr:
		return Err(xlcall.Error(rv.Int())), nil
	case KindStr:
		switch s := rv.Interface().(type) {
		case pstring.Wide:
			return Str{Text: s}, nil
		case pstring.Narrow:
			return Str{Text: pstring.ToWide(s)}, nil
		case []uint16:
			return Str{Text: pstring.FromUnits(s)}, nil
		}
		if rv.Kind() == reflect.String {
			return NewStr(rv.String()), nil
		}
	default:
		if v, ok := rv.Interface().(Value); ok {
			return v, nil
		}
	}
	return nil, errors.TypeMismatch(errors.PhaseResolve, nil, rv.Type().String(), kind.String())
}
