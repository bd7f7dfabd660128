package value

import (
	"fmt"

	"github.com/wippyai/xll-runtime/xlcall"
)

// Kind is the alternative index of a Value.
type Kind int

const (
	KindNum Kind = iota
	KindStr
	KindBool
	KindErr
	KindInt
	KindSRef
	KindRef
	KindMulti
	KindFlow
	KindBigData
	KindMissing
	KindNil

	// NumKinds is the number of alternatives.
	NumKinds = int(KindNil) + 1
)

var kindTypes = [NumKinds]xlcall.Type{
	KindNum:     xlcall.TypeNum,
	KindStr:     xlcall.TypeStr,
	KindBool:    xlcall.TypeBool,
	KindErr:     xlcall.TypeErr,
	KindInt:     xlcall.TypeInt,
	KindSRef:    xlcall.TypeSRef,
	KindRef:     xlcall.TypeRef,
	KindMulti:   xlcall.TypeMulti,
	KindFlow:    xlcall.TypeFlow,
	KindBigData: xlcall.TypeBigData,
	KindMissing: xlcall.TypeMissing,
	KindNil:     xlcall.TypeNil,
}

var kindNames = [NumKinds]string{
	"num", "str", "bool", "err", "int", "sref", "ref", "multi", "flow", "bigdata", "missing", "nil",
}

// Valid reports whether k names an alternative.
func (k Kind) Valid() bool { return k >= 0 && int(k) < NumKinds }

// Type returns the wire discriminant of the alternative.
func (k Kind) Type() xlcall.Type {
	if !k.Valid() {
		return 0
	}
	return kindTypes[k]
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// KindOf maps a discriminant to its alternative. Flag bits are ignored.
func KindOf(t xlcall.Type) (Kind, bool) {
	t &= xlcall.Type(xlcall.TypeMask)
	for k, kt := range kindTypes {
		if kt == t {
			return Kind(k), true
		}
	}
	return -1, false
}

// Trivial reports whether values of k own no out-of-line memory.
func (k Kind) Trivial() bool {
	return !k.Type().NeedsRelease()
}
