package callback

import (
	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/internal/invariant"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

// Boundary issues calls into the host through an Entry. It is the
// Releaser for records whose payload the host allocated.
type Boundary struct {
	entry Entry
	arena *oper.Arena
}

var _ oper.Releaser = (*Boundary)(nil)

// New creates a boundary over entry. space is where argument and result
// records of the helper calls are built.
func New(entry Entry, space oper.Space) *Boundary {
	b := &Boundary{entry: entry}
	b.arena = oper.NewArena(space, b)
	return b
}

// Open resolves the entry point registered under name and creates a
// boundary over it.
func Open(name string, space oper.Space) (*Boundary, error) {
	e, err := Resolve(name)
	if err != nil {
		return nil, err
	}
	return New(e, space), nil
}

// Arena returns the arena helper calls build their records in. Its
// releaser is the boundary.
func (b *Boundary) Arena() *oper.Arena { return b.arena }

// Call invokes fn with args and stores the host's answer in result.
//
// More than xlcall.MaxArgs arguments fail with RetInvCount before the host
// is reached. A failed call leaves result as it was and is not retried. On
// success a string, reference or array result is marked foreign-owned, so
// destroying it releases the payload through xlFree. result must not hold
// a payload that still needs releasing.
func (b *Boundary) Call(fn xlcall.Function, result *oper.Oper, args ...*oper.Oper) xlcall.Ret {
	if len(args) > xlcall.MaxArgs {
		Logger().Error("too many arguments",
			zap.Stringer("fn", fn),
			zap.Int("argc", len(args)))
		return xlcall.RetInvCount
	}
	if b.entry == nil {
		invariant.Fail("call without entry point", zap.Stringer("fn", fn))
		return xlcall.RetAbort
	}

	ptrs := make([]xll.Addr, len(args))
	for i, a := range args {
		if a != nil {
			ptrs[i] = a.Addr()
		}
	}
	var res xll.Addr
	if result != nil {
		res = result.Addr()
	}

	ret := b.entry.Call(fn, ptrs, res)
	if !ret.OK() {
		Logger().Error("callback failed",
			zap.Stringer("fn", fn),
			zap.Stringer("ret", ret),
			zap.Int("argc", len(args)))
		return ret
	}
	if result != nil && result.Type().NeedsRelease() {
		result.SetProvenance(oper.ForeignOwned)
	}
	return ret
}

// Release hands a foreign-owned payload back to the host with xlFree.
func (b *Boundary) Release(o *oper.Oper) error {
	return b.Call(xlcall.FnFree, nil, o).Err()
}
