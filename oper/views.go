package oper

import (
	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
)

// Handle is the asynchronous call handle the host passes to an
// asynchronous function. It always holds BigData.
type Handle struct {
	Oper
}

// HandleAt views the record at addr as a handle.
func (a *Arena) HandleAt(addr xll.Addr) (*Handle, error) {
	h := &Handle{Oper{arena: a, addr: addr}}
	if t := h.Type(); t != xlcall.TypeBigData {
		return nil, errors.TypeMismatch(errors.PhaseDecode, nil, "oper.Handle", t.String())
	}
	return h, nil
}

// NewHandle allocates a self-owned handle record for id.
func (a *Arena) NewHandle(id xll.Addr) (*Handle, error) {
	o, err := a.MakeWith(value.BigData{Handle: id}, SelfOwned)
	if err != nil {
		return nil, err
	}
	return &Handle{*o}, nil
}

// ID returns the host's identifier for the pending call.
func (h *Handle) ID() xll.Addr {
	bd, err := GetAs[value.BigData](&h.Oper)
	if err != nil {
		return 0
	}
	return bd.Handle
}

// Reference is a record the host may fill with a reference instead of a
// value. Functions taking one are registered with the U type code.
type Reference struct {
	Oper
}

// ReferenceAt views the record at addr as a reference parameter.
func (a *Arena) ReferenceAt(addr xll.Addr) *Reference {
	return &Reference{Oper{arena: a, addr: addr}}
}

// IsReference reports whether the record holds a single or multi-area
// reference.
func (r *Reference) IsReference() bool {
	switch r.Type() {
	case xlcall.TypeSRef, xlcall.TypeRef:
		return true
	}
	return false
}

// Areas returns the referenced rectangles, or nil for plain values.
func (r *Reference) Areas() []value.Rect {
	v, err := r.Get()
	if err != nil {
		return nil
	}
	switch x := v.(type) {
	case value.SRef:
		return []value.Rect{x.Area}
	case value.Ref:
		return x.Areas
	}
	return nil
}
