package oper

import (
	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/internal/abi"
	"github.com/wippyai/xll-runtime/internal/invariant"
	"github.com/wippyai/xll-runtime/value"
	"go.uber.org/zap"
)

// Space is the address space records live in.
type Space interface {
	xll.Memory
	xll.Allocator
	xll.PointerSizer
	// OnStack reports whether addr lies within the current stack extent.
	OnStack(addr xll.Addr) bool
}

// Frame carves stack-resident storage.
type Frame interface {
	Alloc(size, align uint32) (xll.Addr, error)
}

// Releaser releases foreign-owned payloads by calling back into the host.
type Releaser interface {
	Release(o *Oper) error
}

// Arena creates and interprets records in one Space.
type Arena struct {
	space    Space
	alloc    xll.Allocator
	releaser Releaser
	layout   Layout
}

// ArenaOption configures an Arena.
type ArenaOption func(*Arena)

// WithAllocator makes the arena allocate payloads and records with a
// instead of the space itself.
func WithAllocator(a xll.Allocator) ArenaOption {
	return func(ar *Arena) { ar.alloc = a }
}

// NewArena creates an arena over space. r releases foreign-owned payloads
// and may be nil when no foreign records are destroyed through the arena.
func NewArena(space Space, r Releaser, opts ...ArenaOption) *Arena {
	a := &Arena{
		space:    space,
		alloc:    space,
		releaser: r,
		layout:   LayoutFor(space.PtrSize()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Arena) Space() Space             { return a.space }
func (a *Arena) Layout() Layout           { return a.layout }
func (a *Arena) Allocator() xll.Allocator { return a.alloc }
func (a *Arena) Releaser() Releaser       { return a.releaser }

// SetReleaser replaces the releaser. Used when the releaser itself needs
// the arena to be constructed first.
func (a *Arena) SetReleaser(r Releaser) { a.releaser = r }

// At views the record at addr. The record is not validated.
func (a *Arena) At(addr xll.Addr) *Oper {
	return &Oper{arena: a, addr: addr}
}

// New allocates a heap record holding Missing. Heap records are self-owned.
func (a *Arena) New() (*Oper, error) {
	addr, err := a.alloc.Alloc(RecordSize, RecordAlign)
	if err != nil {
		return nil, err
	}
	o := a.At(addr)
	if err := o.Construct(value.Missing{}); err != nil {
		a.alloc.Free(addr)
		return nil, err
	}
	return o, nil
}

// NewIn allocates a record in a stack frame. Stack records holding Missing
// are foreign-owned by address.
func (a *Arena) NewIn(f Frame) (*Oper, error) {
	addr, err := f.Alloc(RecordSize, RecordAlign)
	if err != nil {
		return nil, err
	}
	o := a.At(addr)
	if err := o.Construct(value.Missing{}); err != nil {
		return nil, err
	}
	return o, nil
}

// Make allocates a heap record and constructs v in it.
func (a *Arena) Make(v value.Value) (*Oper, error) {
	o, err := a.New()
	if err != nil {
		return nil, err
	}
	if err := o.Emplace(v); err != nil {
		a.alloc.Free(o.addr)
		return nil, err
	}
	return o, nil
}

// MakeWith allocates a heap record and constructs v with provenance p.
func (a *Arena) MakeWith(v value.Value, p Provenance) (*Oper, error) {
	addr, err := a.alloc.Alloc(RecordSize, RecordAlign)
	if err != nil {
		return nil, err
	}
	o := a.At(addr)
	if err := o.ConstructWith(v, p); err != nil {
		a.alloc.Free(addr)
		return nil, err
	}
	return o, nil
}

// NewArray allocates n consecutive heap records, each holding Nil.
func (a *Arena) NewArray(n int) (xll.Addr, error) {
	if n <= 0 {
		return 0, nil
	}
	size, ok := abi.SafeMulU32(uint32(n), RecordSize)
	if !ok || n > abi.MaxCells {
		return 0, errors.Overflow(errors.PhaseEncode, nil, n, "record array")
	}
	addr, err := a.alloc.Alloc(size, RecordAlign)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		rec := addr + xll.Addr(i*RecordSize)
		if err := a.space.WriteU32(rec+TypeOffset, uint32(value.KindNil.Type())|a.provenanceAt(rec).Bit()); err != nil {
			a.alloc.Free(addr)
			return 0, err
		}
	}
	return addr, nil
}

// Delete destroys o and frees the record's own heap storage. The record
// must have come from New, Make or MakeWith.
func (a *Arena) Delete(o *Oper) {
	if o == nil || o.addr == 0 {
		return
	}
	o.Destroy()
	a.alloc.Free(o.addr)
	o.addr = 0
}

func (a *Arena) provenanceAt(addr xll.Addr) Provenance {
	if a.space.OnStack(addr) {
		return ForeignOwned
	}
	return SelfOwned
}

func (a *Arena) release(o *Oper) {
	if a.releaser == nil {
		invariant.Fail("foreign-owned record destroyed without a releaser",
			zap.Uint64("addr", uint64(o.addr)),
			zap.Stringer("type", o.Type()))
		return
	}
	if err := a.releaser.Release(o); err != nil {
		Logger().Warn("release of foreign-owned record failed",
			zap.Uint64("addr", uint64(o.addr)),
			zap.Stringer("type", o.Type()),
			zap.Error(err))
	}
}
