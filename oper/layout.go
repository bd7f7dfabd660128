package oper

import "github.com/wippyai/xll-runtime/value"

// Fixed record geometry, identical for both pointer widths.
const (
	StorageSize = 24
	TypeOffset  = 24
	RecordSize  = 32
	RecordAlign = 8

	// RectSize is the wire size of a cell rectangle: four int32 bounds.
	RectSize = 16
	// MRefHeader is the u16 count plus padding preceding a rectangle table.
	MRefHeader = 4
)

// Layout holds the storage offsets of every alternative for one pointer
// width. Offsets are relative to the start of the record.
type Layout struct {
	PtrSize uint32

	// str, ref, multi, bigdata: pointer or handle at 0
	Ptr uint32

	// sref: u16 count then one rectangle
	SRefCount uint32
	SRefRect  uint32

	// ref: sheet id follows the table pointer
	RefSheet uint32

	// multi: i32 rows and columns follow the array pointer
	MultiRows    uint32
	MultiColumns uint32

	// flow: pointer-width value, then i32 row, i32 column and the op byte
	FlowValue  uint32
	FlowRow    uint32
	FlowColumn uint32
	FlowOp     uint32

	// bigdata: i32 byte count follows the handle
	BigDataSize uint32
}

var (
	layout32 = newLayout(4)
	layout64 = newLayout(8)
)

func newLayout(ptr uint32) Layout {
	return Layout{
		PtrSize:      ptr,
		Ptr:          0,
		SRefCount:    0,
		SRefRect:     4,
		RefSheet:     ptr,
		MultiRows:    ptr,
		MultiColumns: ptr + 4,
		FlowValue:    0,
		FlowRow:      ptr,
		FlowColumn:   ptr + 4,
		FlowOp:       ptr + 8,
		BigDataSize:  ptr,
	}
}

// LayoutFor returns the layout for a pointer width. Widths other than 4
// use the 64-bit layout.
func LayoutFor(ptrSize uint32) Layout {
	if ptrSize == 4 {
		return layout32
	}
	return layout64
}

// PayloadSize returns the number of storage bytes alternative k occupies.
func (l Layout) PayloadSize(k value.Kind) uint32 {
	switch k {
	case value.KindNum:
		return 8
	case value.KindStr:
		return l.PtrSize
	case value.KindBool, value.KindErr, value.KindInt:
		return 4
	case value.KindSRef:
		return l.SRefRect + RectSize
	case value.KindRef:
		return 2 * l.PtrSize
	case value.KindMulti:
		return l.MultiColumns + 4
	case value.KindFlow:
		return l.FlowOp + 1 + (l.PtrSize - 1)
	case value.KindBigData:
		return 2 * l.PtrSize
	}
	return 0
}
