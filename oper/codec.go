package oper

import (
	"encoding/binary"
	"math"
	"strconv"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/internal/abi"
	"github.com/wippyai/xll-runtime/memory"
	"github.com/wippyai/xll-runtime/pstring"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
)

// maxDepth bounds nesting of arrays inside arrays.
const maxDepth = 16

type encoder struct {
	a      *Arena
	allocs *memory.AllocationList
}

// encode lowers v into a storage image. Out-of-line payloads are written
// to fresh allocations, which are freed again if lowering fails.
func (a *Arena) encode(v value.Value) ([StorageSize]byte, error) {
	var buf [StorageSize]byte
	e := encoder{a: a, allocs: memory.NewAllocationList()}
	if err := e.lower(v, buf[:], 0, nil); err != nil {
		e.allocs.FreeAndRelease(a.alloc)
		return buf, err
	}
	e.allocs.Release()
	return buf, nil
}

func (e *encoder) putPtr(buf []byte, addr uint64, path []string) error {
	if e.a.layout.PtrSize == 4 {
		if addr > math.MaxUint32 {
			return errors.Overflow(errors.PhaseEncode, path, addr, "32-bit pointer")
		}
		binary.LittleEndian.PutUint32(buf, uint32(addr))
		return nil
	}
	binary.LittleEndian.PutUint64(buf, addr)
	return nil
}

func putRect(buf []byte, r value.Rect) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(r.RowFirst))
	binary.LittleEndian.PutUint32(buf[4:], uint32(r.RowLast))
	binary.LittleEndian.PutUint32(buf[8:], uint32(r.ColFirst))
	binary.LittleEndian.PutUint32(buf[12:], uint32(r.ColLast))
}

func getRect(buf []byte) value.Rect {
	return value.Rect{
		RowFirst: int32(binary.LittleEndian.Uint32(buf[0:])),
		RowLast:  int32(binary.LittleEndian.Uint32(buf[4:])),
		ColFirst: int32(binary.LittleEndian.Uint32(buf[8:])),
		ColLast:  int32(binary.LittleEndian.Uint32(buf[12:])),
	}
}

func (e *encoder) alloc(size, align uint32) (xll.Addr, error) {
	addr, err := e.a.alloc.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	e.allocs.Add(addr)
	return addr, nil
}

func (e *encoder) lower(v value.Value, buf []byte, depth int, path []string) error {
	l := e.a.layout
	switch x := v.(type) {
	case value.Num:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(float64(x)))

	case value.Str:
		addr, err := e.alloc(x.Text.ByteSize(), 2)
		if err != nil {
			return err
		}
		if err := x.Text.StoreAt(e.a.space, addr); err != nil {
			return err
		}
		return e.putPtr(buf[l.Ptr:], uint64(addr), path)

	case value.Bool:
		if x {
			binary.LittleEndian.PutUint32(buf, 1)
		}

	case value.Err:
		binary.LittleEndian.PutUint32(buf, uint32(int32(x)))

	case value.Int:
		binary.LittleEndian.PutUint32(buf, uint32(x))

	case value.SRef:
		binary.LittleEndian.PutUint16(buf[l.SRefCount:], 1)
		putRect(buf[l.SRefRect:], x.Area)

	case value.Ref:
		var table xll.Addr
		if n := len(x.Areas); n > 0 {
			if n > math.MaxUint16 {
				return errors.Overflow(errors.PhaseEncode, path, n, "reference area count")
			}
			raw := make([]byte, MRefHeader+n*RectSize)
			binary.LittleEndian.PutUint16(raw, uint16(n))
			for i, r := range x.Areas {
				putRect(raw[MRefHeader+i*RectSize:], r)
			}
			addr, err := e.alloc(uint32(len(raw)), 4)
			if err != nil {
				return err
			}
			if err := e.a.space.Write(addr, raw); err != nil {
				return err
			}
			table = addr
		}
		if err := e.putPtr(buf[l.Ptr:], uint64(table), path); err != nil {
			return err
		}
		return e.putPtr(buf[l.RefSheet:], x.SheetID, path)

	case value.Multi:
		return e.lowerMulti(x, buf, depth, path)

	case value.Flow:
		if err := e.putPtr(buf[l.FlowValue:], x.Level, path); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(buf[l.FlowRow:], uint32(x.Row))
		binary.LittleEndian.PutUint32(buf[l.FlowColumn:], uint32(x.Col))
		buf[l.FlowOp] = byte(x.Op)

	case value.BigData:
		if err := e.putPtr(buf[l.Ptr:], uint64(x.Handle), path); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(buf[l.BigDataSize:], uint32(x.Size))

	case value.Missing, value.Nil:

	case nil:
		return errors.NilPointer(errors.PhaseEncode, path, "value.Value")

	default:
		return errors.Unsupported(errors.PhaseEncode, abi.TypeName(v))
	}
	return nil
}

func (e *encoder) lowerMulti(m value.Multi, buf []byte, depth int, path []string) error {
	l := e.a.layout
	if depth >= maxDepth {
		return errors.InvalidData(errors.PhaseEncode, path, "arrays nested too deeply")
	}
	if m.Rows < 0 || m.Columns < 0 || m.Rows > math.MaxInt32 || m.Columns > math.MaxInt32 {
		return errors.InvalidData(errors.PhaseEncode, path,
			"invalid array dimensions "+strconv.Itoa(m.Rows)+"x"+strconv.Itoa(m.Columns))
	}
	n := m.Rows * m.Columns
	if n > abi.MaxCells {
		return errors.Overflow(errors.PhaseEncode, path, n, "array")
	}
	if len(m.Values) != n {
		return errors.InvalidData(errors.PhaseEncode, path,
			"array holds "+strconv.Itoa(len(m.Values))+" values for "+strconv.Itoa(n)+" cells")
	}

	var arr xll.Addr
	if n > 0 {
		addr, err := e.alloc(uint32(n)*RecordSize, RecordAlign)
		if err != nil {
			return err
		}
		arr = addr
		for i, elem := range m.Values {
			if elem == nil {
				elem = value.Nil{}
			}
			var rec [RecordSize]byte
			elemPath := append(path[:len(path):len(path)], "["+strconv.Itoa(i)+"]")
			if err := e.lower(elem, rec[:StorageSize], depth+1, elemPath); err != nil {
				return err
			}
			at := arr + xll.Addr(i*RecordSize)
			word := uint32(elem.Kind().Type()) | e.a.provenanceAt(at).Bit()
			binary.LittleEndian.PutUint32(rec[TypeOffset:], word)
			if err := e.a.space.Write(at, rec[:]); err != nil {
				return err
			}
		}
	}

	if err := e.putPtr(buf[l.Ptr:], uint64(arr), path); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[l.MultiRows:], uint32(m.Rows))
	binary.LittleEndian.PutUint32(buf[l.MultiColumns:], uint32(m.Columns))
	return nil
}

func (a *Arena) getPtr(buf []byte) xll.Addr {
	if a.layout.PtrSize == 4 {
		return xll.Addr(binary.LittleEndian.Uint32(buf))
	}
	return xll.Addr(binary.LittleEndian.Uint64(buf))
}

// multiCells validates the dimensions of an array record.
func multiCells(rows, cols int32, path []string) (int, error) {
	if rows < 0 || cols < 0 {
		return 0, errors.InvalidData(errors.PhaseDecode, path, "negative array dimensions")
	}
	n, ok := abi.SafeMulU32(uint32(rows), uint32(cols))
	if !ok || n > abi.MaxCells {
		return 0, errors.Overflow(errors.PhaseDecode, path, uint64(rows)*uint64(cols), "array")
	}
	return int(n), nil
}

// lift decodes the storage at rec as alternative k.
func (a *Arena) lift(k value.Kind, rec xll.Addr, depth int, path []string) (value.Value, error) {
	l := a.layout
	buf, err := a.space.Read(rec, StorageSize)
	if err != nil {
		return nil, err
	}

	switch k {
	case value.KindNum:
		return value.Num(math.Float64frombits(binary.LittleEndian.Uint64(buf))), nil

	case value.KindStr:
		ptr := a.getPtr(buf[l.Ptr:])
		if ptr == 0 {
			return value.Str{}, nil
		}
		w, err := pstring.LoadWide(a.space, ptr)
		if err != nil {
			return nil, err
		}
		return value.Str{Text: w}, nil

	case value.KindBool:
		return value.Bool(binary.LittleEndian.Uint32(buf) != 0), nil

	case value.KindErr:
		return value.Err(int32(binary.LittleEndian.Uint32(buf))), nil

	case value.KindInt:
		return value.Int(int32(binary.LittleEndian.Uint32(buf))), nil

	case value.KindSRef:
		if n := binary.LittleEndian.Uint16(buf[l.SRefCount:]); n != 1 {
			return nil, errors.InvalidData(errors.PhaseDecode, path,
				"single reference with area count "+strconv.Itoa(int(n)))
		}
		return value.SRef{Area: getRect(buf[l.SRefRect:])}, nil

	case value.KindRef:
		ref := value.Ref{SheetID: uint64(a.getPtr(buf[l.RefSheet:]))}
		table := a.getPtr(buf[l.Ptr:])
		if table == 0 {
			return ref, nil
		}
		n, err := a.space.ReadU16(table)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return ref, nil
		}
		raw, err := a.space.Read(table+MRefHeader, uint32(n)*RectSize)
		if err != nil {
			return nil, err
		}
		ref.Areas = make([]value.Rect, n)
		for i := range ref.Areas {
			ref.Areas[i] = getRect(raw[i*RectSize:])
		}
		return ref, nil

	case value.KindMulti:
		if depth >= maxDepth {
			return nil, errors.InvalidData(errors.PhaseDecode, path, "arrays nested too deeply")
		}
		rows := int32(binary.LittleEndian.Uint32(buf[l.MultiRows:]))
		cols := int32(binary.LittleEndian.Uint32(buf[l.MultiColumns:]))
		n, err := multiCells(rows, cols, path)
		if err != nil {
			return nil, err
		}
		m := value.Multi{Rows: int(rows), Columns: int(cols), Values: make([]value.Value, n)}
		if n == 0 {
			return m, nil
		}
		arr := a.getPtr(buf[l.Ptr:])
		if arr == 0 {
			return nil, errors.NilPointer(errors.PhaseDecode, path, "value.Multi")
		}
		for i := range m.Values {
			at := arr + xll.Addr(i*RecordSize)
			elemPath := append(path[:len(path):len(path)], "["+strconv.Itoa(i)+"]")
			word, err := a.space.ReadU32(at + TypeOffset)
			if err != nil {
				return nil, err
			}
			ek, ok := value.KindOf(xlcall.Type(word))
			if !ok {
				return nil, errors.InvalidDiscriminant(errors.PhaseDecode, elemPath, word&xlcall.TypeMask)
			}
			elem, err := a.lift(ek, at, depth+1, elemPath)
			if err != nil {
				return nil, err
			}
			m.Values[i] = elem
		}
		return m, nil

	case value.KindFlow:
		return value.Flow{
			Op:    xlcall.FlowOp(buf[l.FlowOp]),
			Level: uint64(a.getPtr(buf[l.FlowValue:])),
			Row:   int32(binary.LittleEndian.Uint32(buf[l.FlowRow:])),
			Col:   int32(binary.LittleEndian.Uint32(buf[l.FlowColumn:])),
		}, nil

	case value.KindBigData:
		return value.BigData{
			Handle: a.getPtr(buf[l.Ptr:]),
			Size:   int32(binary.LittleEndian.Uint32(buf[l.BigDataSize:])),
		}, nil

	case value.KindMissing:
		return value.Missing{}, nil

	case value.KindNil:
		return value.Nil{}, nil
	}
	return nil, errors.InvalidData(errors.PhaseDecode, path, "unknown alternative "+k.String())
}

// releasePayload frees the out-of-line memory of a self-owned record.
func (a *Arena) releasePayload(rec xll.Addr, t xlcall.Type, depth int) error {
	if !t.NeedsRelease() {
		return nil
	}
	buf, err := a.space.Read(rec, StorageSize)
	if err != nil {
		return err
	}
	l := a.layout
	ptr := a.getPtr(buf[l.Ptr:])
	if ptr == 0 {
		return nil
	}

	if t == xlcall.TypeMulti {
		if depth >= maxDepth {
			return errors.InvalidData(errors.PhaseDecode, nil, "arrays nested too deeply")
		}
		rows := int32(binary.LittleEndian.Uint32(buf[l.MultiRows:]))
		cols := int32(binary.LittleEndian.Uint32(buf[l.MultiColumns:]))
		n, err := multiCells(rows, cols, nil)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			at := ptr + xll.Addr(i*RecordSize)
			word, err := a.space.ReadU32(at + TypeOffset)
			if err != nil {
				return err
			}
			if err := a.releasePayload(at, xlcall.Type(word&xlcall.TypeMask), depth+1); err != nil {
				return err
			}
		}
	}
	a.alloc.Free(ptr)
	return nil
}
