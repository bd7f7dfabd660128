package addin

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/fp12"
	"github.com/wippyai/xll-runtime/internal/abi"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/pstring"
	"github.com/wippyai/xll-runtime/signature"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

// Dispatch runs an exported procedure the way the host calls it: each
// argument arrives as the address of a host record and the result is a
// self-owned record the host hands back through AutoFree. Arguments that
// cannot be converted, and exports that panic, produce #VALUE!.
func (a *AddIn) Dispatch(procedure string, args []xll.Addr) (xll.Addr, error) {
	b := a.boundary.Load()
	if b == nil {
		return 0, errors.NotInitialized(errors.PhaseCall, "add-in boundary")
	}
	a.mu.Lock()
	fn, ok := a.exports[procedure]
	a.mu.Unlock()
	if !ok {
		return 0, errors.NotFound(errors.PhaseCall, "export", procedure)
	}
	_, reg, ok := a.table.Lookup(procedure)
	if !ok {
		return 0, errors.NotFound(errors.PhaseCall, "registration", procedure)
	}
	sig := reg.Signature
	params := sig.Params()
	if len(args) != len(params) {
		return 0, errors.InvalidInput(errors.PhaseCall,
			procedure+": expected "+strconv.Itoa(len(params))+" arguments, got "+strconv.Itoa(len(args)))
	}

	typ := fn.Type()
	in := make([]reflect.Value, len(params))
	for i, code := range params {
		v, err := a.decodeArg(code, typ.In(i), args[i])
		if err != nil {
			Logger().Debug("argument rejected",
				zap.String("procedure", procedure),
				zap.Int("index", i),
				zap.Error(err))
			return a.fail(sig)
		}
		in[i] = v
	}

	out, err := invoke(fn, in)
	if err != nil {
		Logger().Error("export failed", zap.String("procedure", procedure), zap.Error(err))
		return a.fail(sig)
	}
	if sig.Result() == signature.CodeVoid {
		return 0, nil
	}
	v, err := encodeResult(sig.Result(), out[0])
	if err != nil {
		Logger().Debug("result rejected", zap.String("procedure", procedure), zap.Error(err))
		v = value.Err(xlcall.ErrValue)
	}
	return a.result(v)
}

func (a *AddIn) fail(sig signature.Signature) (xll.Addr, error) {
	if sig.Result() == signature.CodeVoid {
		return 0, nil
	}
	return a.result(value.Err(xlcall.ErrValue))
}

func (a *AddIn) result(v value.Value) (xll.Addr, error) {
	o, err := a.boundary.Load().Arena().Make(v)
	if err != nil {
		o, err = a.boundary.Load().Arena().Make(value.Err(xlcall.ErrValue))
		if err != nil {
			return 0, err
		}
	}
	return o.Addr(), nil
}

func invoke(fn reflect.Value, in []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.PhaseCall, errors.KindBoundary).
				Value(r).
				Detail("export panicked: %v", r).
				Build()
		}
	}()
	return fn.Call(in), nil
}

func argError(code signature.Code, v value.Value) error {
	return errors.TypeMismatch(errors.PhaseDecode, nil, string(code), v.Kind().String())
}

// decodeArg converts the host record at addr to the Go parameter type t.
func (a *AddIn) decodeArg(code signature.Code, t reflect.Type, addr xll.Addr) (reflect.Value, error) {
	ar := a.boundary.Load().Arena()
	switch code {
	case signature.CodeReference:
		r := ar.ReferenceAt(addr)
		if t.Kind() == reflect.Pointer {
			return reflect.ValueOf(r), nil
		}
		return reflect.ValueOf(*r), nil
	case signature.CodeHandle:
		h, err := a.ownHandle(addr)
		if err != nil {
			return reflect.Value{}, err
		}
		if t.Kind() == reflect.Pointer {
			return reflect.ValueOf(h), nil
		}
		return reflect.ValueOf(*h), nil
	case signature.CodeValue:
		if t.Kind() == reflect.Pointer {
			return reflect.ValueOf(ar.At(addr)), nil
		}
		if t.Kind() == reflect.Struct {
			return reflect.ValueOf(*ar.At(addr)), nil
		}
	}

	v, err := ar.At(addr).Get()
	if err != nil {
		return reflect.Value{}, err
	}
	switch code {
	case signature.CodeValue:
		rv := reflect.New(t).Elem()
		rv.Set(reflect.ValueOf(v))
		return rv, nil
	case signature.CodeArray:
		arr, err := arrayOf(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(arr), nil
	case signature.CodeCString, signature.CodeWString, signature.CodeCounted, signature.CodeCountedWide:
		s, ok := text(v)
		if !ok {
			return reflect.Value{}, argError(code, v)
		}
		switch code {
		case signature.CodeCString:
			return reflect.ValueOf(signature.CString(s)), nil
		case signature.CodeWString:
			return reflect.ValueOf(signature.WString(s)), nil
		case signature.CodeCounted:
			return reflect.ValueOf(pstring.NewNarrow(s)), nil
		}
		return reflect.ValueOf(pstring.NewWide(s)), nil
	case signature.CodeBool, signature.CodeBoolRef:
		bv, ok := boolean(v)
		if !ok {
			return reflect.Value{}, argError(code, v)
		}
		if code == signature.CodeBoolRef {
			return reflect.ValueOf(&bv), nil
		}
		return reflect.ValueOf(bv), nil
	}

	f, ok := number(v)
	if !ok {
		return reflect.Value{}, argError(code, v)
	}
	switch code {
	case signature.CodeFloat:
		return reflect.ValueOf(f), nil
	case signature.CodeFloatRef:
		return reflect.ValueOf(&f), nil
	case signature.CodeUint16:
		n, ok := abi.CoerceToUint16(math.Trunc(f))
		if !ok {
			return reflect.Value{}, errors.Overflow(errors.PhaseDecode, nil, f, "uint16")
		}
		return reflect.ValueOf(n), nil
	case signature.CodeInt16, signature.CodeInt16Ref:
		n, ok := abi.CoerceToInt32(math.Trunc(f))
		if !ok || n < math.MinInt16 || n > math.MaxInt16 {
			return reflect.Value{}, errors.Overflow(errors.PhaseDecode, nil, f, "int16")
		}
		s := int16(n)
		if code == signature.CodeInt16Ref {
			return reflect.ValueOf(&s), nil
		}
		return reflect.ValueOf(s), nil
	case signature.CodeInt32, signature.CodeInt32Ref:
		n, ok := abi.CoerceToInt32(math.Trunc(f))
		if !ok {
			return reflect.Value{}, errors.Overflow(errors.PhaseDecode, nil, f, "int32")
		}
		if code == signature.CodeInt32Ref {
			return reflect.ValueOf(&n), nil
		}
		return reflect.ValueOf(n), nil
	}
	return reflect.Value{}, errors.Unsupported(errors.PhaseDecode, "type code "+string(code))
}

// ownHandle copies the host's handle record into a self-owned record that
// outlives the call, so the export may complete it later.
func (a *AddIn) ownHandle(addr xll.Addr) (*oper.Handle, error) {
	ar := a.boundary.Load().Arena()
	host, err := ar.HandleAt(addr)
	if err != nil {
		return nil, err
	}
	id := host.ID()
	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok := a.handles[id]; ok {
		return h, nil
	}
	h, err := ar.NewHandle(id)
	if err != nil {
		return nil, err
	}
	a.handles[id] = h
	return h, nil
}

func number(v value.Value) (float64, bool) {
	switch x := v.(type) {
	case value.Num:
		return float64(x), true
	case value.Int:
		return float64(x), true
	case value.Bool:
		if x {
			return 1, true
		}
		return 0, true
	case value.Missing, value.Nil:
		return 0, true
	case value.Str:
		f, err := strconv.ParseFloat(strings.TrimSpace(x.String()), 64)
		return f, err == nil
	case value.Multi:
		if x.Len() > 0 {
			return number(x.At(0, 0))
		}
	}
	return 0, false
}

func boolean(v value.Value) (bool, bool) {
	switch x := v.(type) {
	case value.Bool:
		return bool(x), true
	case value.Str:
		switch strings.ToUpper(strings.TrimSpace(x.String())) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
		return false, false
	}
	f, ok := number(v)
	return f != 0, ok
}

func text(v value.Value) (string, bool) {
	switch x := v.(type) {
	case value.Str:
		return x.String(), true
	case value.Missing, value.Nil:
		return "", true
	case value.Num, value.Int, value.Bool:
		return value.Format(x), true
	}
	return "", false
}

func arrayOf(v value.Value) (*fp12.Array, error) {
	m, ok := v.(value.Multi)
	if !ok {
		f, ok := number(v)
		if !ok {
			return nil, argError(signature.CodeArray, v)
		}
		arr, _ := fp12.New(1, 1)
		arr.Set(0, 0, f)
		return arr, nil
	}
	arr, err := fp12.New(int32(m.Rows), int32(m.Columns))
	if err != nil {
		return nil, err
	}
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Columns; c++ {
			f, ok := number(m.At(r, c))
			if !ok {
				return nil, argError(signature.CodeArray, m.At(r, c))
			}
			arr.Set(r, c, f)
		}
	}
	return arr, nil
}

// encodeResult converts the export's result to the value the host sees.
func encodeResult(code signature.Code, rv reflect.Value) (value.Value, error) {
	switch code {
	case signature.CodeFloat:
		return value.Num(rv.Float()), nil
	case signature.CodeBool:
		return value.Bool(rv.Bool()), nil
	case signature.CodeUint16:
		return value.Num(float64(rv.Uint())), nil
	case signature.CodeInt16, signature.CodeInt32:
		return value.Num(float64(rv.Int())), nil
	case signature.CodeFloatRef, signature.CodeBoolRef, signature.CodeInt16Ref, signature.CodeInt32Ref:
		if rv.IsNil() {
			return value.Err(xlcall.ErrNum), nil
		}
		return encodeResult(derefCode[code], rv.Elem())
	case signature.CodeCString, signature.CodeWString:
		return value.NewStr(rv.String()), nil
	case signature.CodeCounted:
		return value.NewStr(rv.Interface().(pstring.Narrow).String()), nil
	case signature.CodeCountedWide:
		return value.Str{Text: rv.Interface().(pstring.Wide).Clone()}, nil
	case signature.CodeArray:
		arr, _ := rv.Interface().(*fp12.Array)
		if arr == nil {
			return value.Err(xlcall.ErrNum), nil
		}
		m := value.NewMultiOf(int(arr.Rows), int(arr.Columns))
		for r := 0; r < int(arr.Rows); r++ {
			for c := 0; c < int(arr.Columns); c++ {
				m.Set(r, c, value.Num(arr.At(r, c)))
			}
		}
		return m, nil
	case signature.CodeValue, signature.CodeReference:
		switch x := rv.Interface().(type) {
		case nil:
			return value.Nil{}, nil
		case value.Value:
			return x, nil
		case oper.Oper:
			return x.Get()
		case *oper.Oper:
			if x == nil {
				return value.Nil{}, nil
			}
			return x.Get()
		case oper.Reference:
			return x.Get()
		case *oper.Reference:
			if x == nil {
				return value.Nil{}, nil
			}
			return x.Get()
		}
	}
	return nil, errors.Unsupported(errors.PhaseEncode, "result type code "+string(code))
}

var derefCode = map[signature.Code]signature.Code{
	signature.CodeFloatRef: signature.CodeFloat,
	signature.CodeBoolRef:  signature.CodeBool,
	signature.CodeInt16Ref: signature.CodeInt16,
	signature.CodeInt32Ref: signature.CodeInt32,
}
