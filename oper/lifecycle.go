package oper

import (
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

// Destroy releases the payload. Foreign-owned strings, references and
// arrays are handed to the Releaser and keep their discriminant; all other
// records release locally and are reset to Missing with flags preserved.
// Destroy must be called exactly once per constructed payload.
func (o *Oper) Destroy() {
	w := o.word()
	t := xlcall.Type(w & xlcall.TypeMask)

	if w&xlcall.BitXLFree != 0 && t.NeedsRelease() {
		o.arena.release(o)
		return
	}

	if err := o.arena.releasePayload(o.addr, t, 0); err != nil {
		Logger().Warn("payload release failed",
			zap.Uint64("addr", uint64(o.addr)),
			zap.Stringer("type", t),
			zap.Error(err))
	}
	var empty [StorageSize]byte
	_ = o.write(empty, uint32(xlcall.TypeMissing)|w&xlcall.FlagMask)
}

// ownFlags returns the destination's provenance bits, derived from its
// address when it has none yet.
func (o *Oper) ownFlags() uint32 {
	if bits := o.Flags() & xlcall.OwnershipMask; bits != 0 {
		return bits
	}
	return o.arena.provenanceAt(o.addr).Bit()
}

// CopyFrom deep-copies src into o, which must hold no live payload. The
// destination keeps its own provenance.
func (o *Oper) CopyFrom(src *Oper) error {
	v, err := src.Get()
	if err != nil {
		return err
	}
	return o.place(v, o.ownFlags())
}

// MoveFrom transfers src's payload into o without copying out-of-line
// memory. The ownership bits travel with the payload, so whichever side
// allocated it still releases it. src is left Missing with its pointer
// and array dimensions cleared.
func (o *Oper) MoveFrom(src *Oper) error {
	if src.addr == o.addr {
		return nil
	}
	sw := src.word()
	flags := o.Flags()&^xlcall.OwnershipMask | sw&xlcall.OwnershipMask

	buf, err := src.arena.space.Read(src.addr, StorageSize)
	if err != nil {
		return err
	}
	var storage [StorageSize]byte
	copy(storage[:], buf)
	if err := o.write(storage, sw&xlcall.TypeMask|flags); err != nil {
		return err
	}

	var empty [StorageSize]byte
	return src.write(empty, uint32(xlcall.TypeMissing)|sw&xlcall.FlagMask)
}

// Assign destroys o's payload, then copies src into it.
func (o *Oper) Assign(src *Oper) error {
	if src.addr == o.addr {
		return nil
	}
	o.Destroy()
	return o.CopyFrom(src)
}

// AssignMove destroys o's payload, then moves src into it.
func (o *Oper) AssignMove(src *Oper) error {
	if src.addr == o.addr {
		return nil
	}
	o.Destroy()
	return o.MoveFrom(src)
}

// Emplace lowers v, destroys the current payload, then stores v. If
// lowering fails the current payload is untouched.
func (o *Oper) Emplace(v value.Value) error {
	if v == nil {
		v = value.Nil{}
	}
	buf, err := o.arena.encode(v)
	if err != nil {
		return err
	}
	flags := o.ownFlags()
	o.Destroy()
	return o.write(buf, uint32(v.Kind().Type())|flags)
}

// Set converts src with the full alternative set and emplaces it.
func (o *Oper) Set(src any) error {
	v, err := value.Convert(src, value.Alternatives)
	if err != nil {
		return err
	}
	return o.Emplace(v)
}
