package fp12

import (
	"encoding/binary"
	"math"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/internal/abi"
	"github.com/wippyai/xll-runtime/xlcall"
)

// HeaderSize is the size of the rows and columns prefix.
const HeaderSize = 8

// Array is a row-major matrix of doubles in the host's floating-point
// array layout: i32 rows, i32 columns, then rows*columns f64 values.
type Array struct {
	Rows    int32
	Columns int32
	Data    []float64
}

// New allocates a zeroed rows x cols array.
func New(rows, cols int32) (*Array, error) {
	n, err := cells(rows, cols, errors.PhaseEncode)
	if err != nil {
		return nil, err
	}
	return &Array{Rows: rows, Columns: cols, Data: make([]float64, n)}, nil
}

func cells(rows, cols int32, phase errors.Phase) (int, error) {
	if rows < 0 || cols < 0 {
		return 0, errors.InvalidData(phase, nil, "negative array dimensions")
	}
	if rows > xlcall.MaxRows || cols > xlcall.MaxColumns {
		return 0, errors.Overflow(phase, nil, uint64(rows)*uint64(cols), "fp12 array")
	}
	n, ok := abi.SafeMulU32(uint32(rows), uint32(cols))
	if !ok || n > abi.MaxCells {
		return 0, errors.Overflow(phase, nil, uint64(rows)*uint64(cols), "fp12 array")
	}
	return int(n), nil
}

// Len returns the number of cells.
func (a *Array) Len() int { return int(a.Rows) * int(a.Columns) }

// At returns the value at (r, c). Out-of-range indices yield NaN.
func (a *Array) At(r, c int) float64 {
	if r < 0 || c < 0 || r >= int(a.Rows) || c >= int(a.Columns) {
		return math.NaN()
	}
	return a.Data[r*int(a.Columns)+c]
}

// Set stores v at (r, c) and reports whether the indices were in range.
func (a *Array) Set(r, c int, v float64) bool {
	if r < 0 || c < 0 || r >= int(a.Rows) || c >= int(a.Columns) {
		return false
	}
	a.Data[r*int(a.Columns)+c] = v
	return true
}

// ByteSize returns the size of the array in foreign memory.
func (a *Array) ByteSize() uint32 {
	return HeaderSize + uint32(a.Len())*8
}

// Store allocates foreign memory with alloc and writes the array to it.
func (a *Array) Store(mem xll.Memory, alloc xll.Allocator) (xll.Addr, error) {
	if _, err := cells(a.Rows, a.Columns, errors.PhaseEncode); err != nil {
		return 0, err
	}
	if len(a.Data) != a.Len() {
		return 0, errors.InvalidData(errors.PhaseEncode, nil, "data length does not match dimensions")
	}
	addr, err := alloc.Alloc(a.ByteSize(), 8)
	if err != nil {
		return 0, err
	}
	if err := a.StoreAt(mem, addr); err != nil {
		alloc.Free(addr)
		return 0, err
	}
	return addr, nil
}

// StoreAt writes the array at addr, which must hold ByteSize bytes.
func (a *Array) StoreAt(mem xll.Memory, addr xll.Addr) error {
	buf := make([]byte, a.ByteSize())
	binary.LittleEndian.PutUint32(buf[0:], uint32(a.Rows))
	binary.LittleEndian.PutUint32(buf[4:], uint32(a.Columns))
	for i, v := range a.Data {
		binary.LittleEndian.PutUint64(buf[HeaderSize+i*8:], math.Float64bits(v))
	}
	return mem.Write(addr, buf)
}

// Load reads an array from foreign memory.
func Load(mem xll.Memory, addr xll.Addr) (*Array, error) {
	if addr == 0 {
		return nil, errors.NilPointer(errors.PhaseDecode, nil, "*fp12.Array")
	}
	rows, err := mem.ReadU32(addr)
	if err != nil {
		return nil, err
	}
	cols, err := mem.ReadU32(addr + 4)
	if err != nil {
		return nil, err
	}
	n, err := cells(int32(rows), int32(cols), errors.PhaseDecode)
	if err != nil {
		return nil, err
	}
	a := &Array{Rows: int32(rows), Columns: int32(cols), Data: make([]float64, n)}
	if n == 0 {
		return a, nil
	}
	raw, err := mem.Read(addr+HeaderSize, uint32(n)*8)
	if err != nil {
		return nil, err
	}
	for i := range a.Data {
		a.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return a, nil
}
