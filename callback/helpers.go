package callback

import (
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
)

// Invoke calls fn with temporary argument records holding vals and returns
// the result. Every temporary, including a foreign-owned result, is
// released before Invoke returns.
func (b *Boundary) Invoke(fn xlcall.Function, vals ...value.Value) (value.Value, error) {
	a := b.arena
	args := make([]*oper.Oper, len(vals))
	defer func() {
		for _, o := range args {
			a.Delete(o)
		}
	}()
	for i, v := range vals {
		o, err := a.Make(v)
		if err != nil {
			return nil, err
		}
		args[i] = o
	}

	res, err := a.New()
	if err != nil {
		return nil, err
	}
	defer a.Delete(res)

	if ret := b.Call(fn, res, args...); !ret.OK() {
		return nil, ret.Err()
	}
	return res.Get()
}

func expect[T value.Value](fn xlcall.Function, v value.Value, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseCall, []string{fn.String()},
			zero.Kind().String(), v.Kind().String())
	}
	return t, nil
}

func (b *Boundary) invokeBool(fn xlcall.Function, vals ...value.Value) (bool, error) {
	v, err := b.Invoke(fn, vals...)
	r, err := expect[value.Bool](fn, v, err)
	return bool(r), err
}

// GetName returns the full path of the add-in as the host knows it.
func (b *Boundary) GetName() (string, error) {
	v, err := b.Invoke(xlcall.FnGetName)
	s, err := expect[value.Str](xlcall.FnGetName, v, err)
	return s.String(), err
}

// StackSize returns the bytes left on the host's stack.
func (b *Boundary) StackSize() (int, error) {
	v, err := b.Invoke(xlcall.FnStack)
	n, err := expect[value.Int](xlcall.FnStack, v, err)
	return int(n), err
}

// GetHwnd returns the low word of the host's main window handle.
func (b *Boundary) GetHwnd() (int32, error) {
	v, err := b.Invoke(xlcall.FnGetHwnd)
	n, err := expect[value.Int](xlcall.FnGetHwnd, v, err)
	return int32(n), err
}

// Coerce asks the host to convert src to one of kinds.
func (b *Boundary) Coerce(src value.Value, kinds ...value.Kind) (value.Value, error) {
	if len(kinds) == 0 {
		return nil, errors.InvalidInput(errors.PhaseCall, "coerce needs at least one target kind")
	}
	var mask xlcall.Type
	for _, k := range kinds {
		mask |= k.Type()
	}
	return b.Invoke(xlcall.FnCoerce, src, value.Int(mask))
}

// Free hands the payloads of records back to the host. The records must
// not be destroyed again afterwards.
func (b *Boundary) Free(records ...*oper.Oper) error {
	return b.Call(xlcall.FnFree, nil, records...).Err()
}

// DefineBinaryName stores data under name in the workbook. A zero handle
// deletes the name.
func (b *Boundary) DefineBinaryName(name string, data value.BigData) error {
	var arg value.Value = value.Missing{}
	if data.Handle != 0 {
		arg = data
	}
	_, err := b.Invoke(xlcall.FnDefineBinaryName, value.NewStr(name), arg)
	return err
}

// GetBinaryName returns the data stored under name.
func (b *Boundary) GetBinaryName(name string) (value.BigData, error) {
	v, err := b.Invoke(xlcall.FnGetBinaryName, value.NewStr(name))
	return expect[value.BigData](xlcall.FnGetBinaryName, v, err)
}

// Alert types for MessageBox.
const (
	AlertQuestion    int32 = 1
	AlertInformation int32 = 2
	AlertError       int32 = 3
)

// MessageBox shows text in a host alert dialog.
func (b *Boundary) MessageBox(text string, kind int32) error {
	_, err := b.Invoke(xlcall.FnAlert, value.NewStr(text), value.Int(kind))
	return err
}

// StatusBar shows text in the host's status bar.
func (b *Boundary) StatusBar(text string) error {
	_, err := b.Invoke(xlcall.FnMessage, value.Bool(true), value.NewStr(text))
	return err
}

// ClearStatusBar returns control of the status bar to the host.
func (b *Boundary) ClearStatusBar() error {
	_, err := b.Invoke(xlcall.FnMessage, value.Bool(false))
	return err
}

// AsyncReturn completes the asynchronous call identified by h with v.
func (b *Boundary) AsyncReturn(h *oper.Handle, v value.Value) (bool, error) {
	id, err := oper.GetAs[value.BigData](&h.Oper)
	if err != nil {
		return false, err
	}
	return b.invokeBool(xlcall.FnAsyncReturn, id, v)
}

// RegisterEvent arranges for procedure to run when ev fires.
func (b *Boundary) RegisterEvent(procedure string, ev xlcall.Event) (bool, error) {
	return b.invokeBool(xlcall.FnEventRegister, value.NewStr(procedure), value.Int(ev))
}

// Unload asks the host to unregister every function of this add-in and
// unload it.
func (b *Boundary) Unload() (bool, error) {
	name, err := b.GetName()
	if err != nil {
		return false, err
	}
	return b.invokeBool(xlcall.FnUnregister, value.NewStr(name))
}

// Unregister removes the function registered with id.
func (b *Boundary) Unregister(id float64) (bool, error) {
	return b.invokeBool(xlcall.FnUnregister, value.Num(id))
}

// CheckInterrupt reports whether the user asked to break off the current
// operation.
func (b *Boundary) CheckInterrupt() (bool, error) {
	return b.invokeBool(xlcall.FnAbort)
}

// RunningOnCluster reports whether the add-in runs on a compute cluster.
func (b *Boundary) RunningOnCluster() (bool, error) {
	return b.invokeBool(xlcall.FnRunningOnCluster)
}
