package oper

import (
	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/internal/invariant"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

// Oper is a view of one wire record in an arena's space.
type Oper struct {
	arena *Arena
	addr  xll.Addr
}

// Addr returns the record's address.
func (o *Oper) Addr() xll.Addr { return o.addr }

// Arena returns the arena the record belongs to.
func (o *Oper) Arena() *Arena { return o.arena }

func (o *Oper) word() uint32 {
	w, err := o.arena.space.ReadU32(o.addr + TypeOffset)
	if err != nil {
		invariant.Fail("unreadable record", zap.Uint64("addr", uint64(o.addr)), zap.Error(err))
		return 0
	}
	return w
}

func (o *Oper) setWord(w uint32) error {
	return o.arena.space.WriteU32(o.addr+TypeOffset, w)
}

// Word returns the raw type word including flags.
func (o *Oper) Word() uint32 { return o.word() }

// Type returns the discriminant with flags masked off.
func (o *Oper) Type() xlcall.Type { return xlcall.Type(o.word() & xlcall.TypeMask) }

// Flags returns the high-nibble flag bits.
func (o *Oper) Flags() uint32 { return o.word() & xlcall.FlagMask }

func checkFlags(bits uint32) uint32 {
	invariant.Assert(bits&^xlcall.OwnershipMask == 0, "reserved flag bits",
		zap.Uint32("bits", bits))
	return bits & xlcall.OwnershipMask
}

// SetFlags sets ownership flag bits. Reserved bits are rejected.
func (o *Oper) SetFlags(bits uint32) {
	_ = o.setWord(o.word() | checkFlags(bits))
}

// ClearFlags clears ownership flag bits.
func (o *Oper) ClearFlags(bits uint32) {
	_ = o.setWord(o.word() &^ checkFlags(bits))
}

// SetProvenance replaces the ownership flags with p's.
func (o *Oper) SetProvenance(p Provenance) {
	_ = o.setWord(o.word()&^xlcall.OwnershipMask | p.Bit())
}

// Provenance returns which side the flags say must release the payload.
func (o *Oper) Provenance() Provenance {
	if o.word()&xlcall.BitXLFree != 0 {
		return ForeignOwned
	}
	return SelfOwned
}

// Ownership returns the release responsibility for the current payload.
func (o *Oper) Ownership() Ownership {
	w := o.word()
	switch xlcall.Type(w & xlcall.TypeMask) {
	case xlcall.TypeMissing, xlcall.TypeNil:
		return Unowned
	}
	if w&xlcall.BitXLFree != 0 {
		return Foreign
	}
	return Self
}

// Kind returns the live alternative.
func (o *Oper) Kind() (value.Kind, bool) {
	return value.KindOf(o.Type())
}

// Index returns the ordinal of the live alternative, or -1 if the
// discriminant is not one of the known tags.
func (o *Oper) Index() int {
	k, ok := o.Kind()
	if !ok {
		return -1
	}
	return int(k)
}

// Construct places v into fresh storage with provenance derived from the
// record's address. Any previous payload is overwritten without release.
func (o *Oper) Construct(v value.Value) error {
	return o.ConstructWith(v, o.arena.provenanceAt(o.addr))
}

// ConstructWith places v into fresh storage with explicit provenance.
func (o *Oper) ConstructWith(v value.Value, p Provenance) error {
	return o.place(v, p.Bit())
}

// place lowers v and writes it with the given flag bits.
func (o *Oper) place(v value.Value, flags uint32) error {
	if v == nil {
		v = value.Nil{}
	}
	buf, err := o.arena.encode(v)
	if err != nil {
		return err
	}
	return o.write(buf, uint32(v.Kind().Type())|flags)
}

func (o *Oper) write(buf [StorageSize]byte, word uint32) error {
	if err := o.arena.space.Write(o.addr, buf[:]); err != nil {
		return err
	}
	return o.setWord(word)
}

// Get lifts the payload into a value.
func (o *Oper) Get() (value.Value, error) {
	w := o.word()
	k, ok := value.KindOf(xlcall.Type(w))
	if !ok {
		return nil, errors.InvalidDiscriminant(errors.PhaseDecode, nil, w&xlcall.TypeMask)
	}
	return o.arena.lift(k, o.addr, 0, nil)
}

// MustGet is Get for records known to be valid. Failures are reported as
// invariant violations and yield Nil.
func (o *Oper) MustGet() value.Value {
	v, err := o.Get()
	if err != nil {
		invariant.Fail("record does not decode", zap.Uint64("addr", uint64(o.addr)), zap.Error(err))
		return value.Nil{}
	}
	return v
}

// GetAs returns the payload as alternative T. The live discriminant must
// be T's; with assertions enabled a mismatch is reported and an error is
// returned, otherwise the storage is decoded as T regardless.
func GetAs[T value.Value](o *Oper) (T, error) {
	var zero T
	if any(zero) == nil {
		v, err := o.Get()
		if err != nil {
			return zero, err
		}
		return v.(T), nil
	}

	want := zero.Kind()
	if invariant.Enabled() {
		if got := o.Type(); got != want.Type() {
			invariant.Fail("access of inactive alternative",
				zap.Stringer("want", want.Type()),
				zap.Stringer("have", got))
			return zero, errors.TypeMismatch(errors.PhaseDecode, nil, want.String(), got.String())
		}
	}
	v, err := o.arena.lift(want, o.addr, 0, nil)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseDecode, nil, want.String(), v.Kind().String())
	}
	return t, nil
}

// Equal compares discriminants first, then payloads.
func (o *Oper) Equal(other *Oper) bool {
	if o.Type() != other.Type() {
		return false
	}
	a, err := o.Get()
	if err != nil {
		return false
	}
	b, err := other.Get()
	if err != nil {
		return false
	}
	return value.Equal(a, b)
}

// String formats the payload for display.
func (o *Oper) String() string {
	v, err := o.Get()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return value.Format(v)
}
