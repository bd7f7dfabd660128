package registry

import (
	"github.com/wippyai/xll-runtime/callback"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/signature"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

// Registration is a procedure the host accepted.
type Registration struct {
	// ID is the register id the host assigned.
	ID        float64
	Module    string
	Function  Function
	Signature signature.Signature
}

// Register derives the type text of fn, validates f against it and
// announces the procedure through xlfRegister. An empty module asks the
// host for the add-in's own name.
func Register(b *callback.Boundary, module string, fn any, f Function) (*Registration, error) {
	if b == nil {
		return nil, errors.NotInitialized(errors.PhaseRegister, "boundary")
	}
	sig, err := signature.Encode(fn, f.Attributes)
	if err != nil {
		return nil, errors.Registration(f.Procedure, err)
	}
	return RegisterSignature(b, module, sig, f)
}

// RegisterSignature is Register for a signature that was derived already.
func RegisterSignature(b *callback.Boundary, module string, sig signature.Signature, f Function) (*Registration, error) {
	if b == nil {
		return nil, errors.NotInitialized(errors.PhaseRegister, "boundary")
	}
	if err := f.validate(sig); err != nil {
		return nil, err
	}
	if module == "" {
		name, err := b.GetName()
		if err != nil {
			return nil, errors.Registration(f.Procedure, err)
		}
		module = name
	}

	res, err := b.Invoke(xlcall.FnRegister, arguments(module, sig, f)...)
	if err != nil {
		return nil, errors.Registration(f.Procedure, err)
	}
	var id float64
	switch r := res.(type) {
	case value.Num:
		id = float64(r)
	case value.Int:
		id = float64(r)
	case value.Err:
		return nil, errors.Registration(f.Procedure,
			errors.New(errors.PhaseCall, errors.KindBoundary).
				Value(r).
				Detail("xlfRegister returned %s", xlcall.Error(r)).
				Build())
	default:
		return nil, errors.Registration(f.Procedure,
			errors.TypeMismatch(errors.PhaseCall, []string{xlcall.FnRegister.String()},
				value.KindNum.String(), res.Kind().String()))
	}

	Logger().Debug("registered",
		zap.String("procedure", f.Procedure),
		zap.String("type_text", sig.String()),
		zap.Float64("id", id))
	return &Registration{ID: id, Module: module, Function: f, Signature: sig}, nil
}

func optional(s string) value.Value {
	if s == "" {
		return value.Missing{}
	}
	return value.NewStr(s)
}

// arguments lays out the xlfRegister argument list.
func arguments(module string, sig signature.Signature, f Function) []value.Value {
	args := make([]value.Value, 0, fixedArgs+len(f.ArgumentHelp))
	args = append(args,
		value.NewStr(module),
		value.NewStr(f.Procedure),
		value.NewStr(sig.String()),
		value.NewStr(f.FunctionText()),
		optional(f.ArgumentText()),
		value.Num(f.Macro),
		optional(f.Category),
		optional(f.Shortcut),
		optional(f.HelpTopic),
		optional(f.Help),
	)
	for _, h := range f.ArgumentHelp {
		args = append(args, value.NewStr(h))
	}
	return args
}

// Unregister removes the registration from the host.
func (r *Registration) Unregister(b *callback.Boundary) error {
	if b == nil {
		return errors.NotInitialized(errors.PhaseRegister, "boundary")
	}
	ok, err := b.Unregister(r.ID)
	if err != nil {
		return errors.Registration(r.Function.Procedure, err)
	}
	if !ok {
		return errors.NotFound(errors.PhaseRegister, "registration", r.Function.Procedure)
	}
	Logger().Debug("unregistered",
		zap.String("procedure", r.Function.Procedure),
		zap.Float64("id", r.ID))
	return nil
}
