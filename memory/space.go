package memory

import (
	"encoding/binary"
	"sort"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/internal/abi"
	"github.com/wippyai/xll-runtime/internal/invariant"
	"go.uber.org/zap"
)

// Side identifies which party of the call boundary made an allocation.
type Side uint8

const (
	SideSelf Side = iota
	SideHost
)

func (s Side) String() string {
	if s == SideHost {
		return "host"
	}
	return "self"
}

const (
	DefaultHeapSize  = 1 << 20
	DefaultStackSize = 64 << 10

	// nullGuard keeps the lowest addresses unallocated so that zero stays null.
	nullGuard = 64
)

// Config sizes an address space.
type Config struct {
	// PtrSize is the pointer width of the simulated process: 4 or 8. Zero means 8.
	PtrSize uint32
	// HeapSize is the size of the heap segment. Zero means DefaultHeapSize.
	HeapSize uint32
	// StackSize is the size of the stack segment. Zero means DefaultStackSize.
	StackSize uint32
}

type block struct {
	addr xll.Addr
	size uint32
}

type allocation struct {
	size uint32
	side Side
}

// Space is a byte-addressed region shared by both sides of the call boundary.
//
// The heap segment starts just above the null guard and is managed by a
// first-fit free list. The stack segment sits above the heap and grows down
// from its base; Frames carve storage from it.
//
// A Space is not safe for concurrent use.
type Space struct {
	mem        []byte
	ptrSize    uint32
	heapEnd    xll.Addr
	stackLimit xll.Addr
	stackBase  xll.Addr
	sp         xll.Addr
	free       []block
	live       map[xll.Addr]allocation
	frames     int
}

var (
	_ xll.Memory       = (*Space)(nil)
	_ xll.Allocator    = (*Space)(nil)
	_ xll.PointerSizer = (*Space)(nil)
)

// NewSpace creates an address space.
func NewSpace(cfg Config) *Space {
	if cfg.PtrSize == 0 {
		cfg.PtrSize = 8
	}
	invariant.Assert(cfg.PtrSize == 4 || cfg.PtrSize == 8, "pointer size must be 4 or 8",
		zap.Uint32("ptr_size", cfg.PtrSize))
	if cfg.PtrSize != 4 {
		cfg.PtrSize = 8
	}
	if cfg.HeapSize == 0 {
		cfg.HeapSize = DefaultHeapSize
	}
	if cfg.StackSize == 0 {
		cfg.StackSize = DefaultStackSize
	}

	heapEnd := xll.Addr(nullGuard) + xll.Addr(cfg.HeapSize)
	stackBase := heapEnd + xll.Addr(cfg.StackSize)

	return &Space{
		mem:        make([]byte, stackBase),
		ptrSize:    cfg.PtrSize,
		heapEnd:    heapEnd,
		stackLimit: heapEnd,
		stackBase:  stackBase,
		sp:         stackBase,
		free:       []block{{addr: nullGuard, size: cfg.HeapSize}},
		live:       make(map[xll.Addr]allocation),
	}
}

// PtrSize returns the pointer width in bytes.
func (s *Space) PtrSize() uint32 { return s.ptrSize }

// Size returns the total size of the space in bytes.
func (s *Space) Size() uint64 { return uint64(len(s.mem)) }

// StackBounds returns the lowest and highest address of the stack segment.
func (s *Space) StackBounds() (limit, base xll.Addr) {
	return s.stackLimit, s.stackBase
}

// OnStack reports whether addr lies within [limit, base] of the stack segment.
func (s *Space) OnStack(addr xll.Addr) bool {
	return addr >= s.stackLimit && addr <= s.stackBase
}

// Alloc allocates heap memory on behalf of this module.
func (s *Space) Alloc(size, align uint32) (xll.Addr, error) {
	return s.AllocAs(SideSelf, size, align)
}

// AllocAs allocates zeroed heap memory and records which side requested it.
func (s *Space) AllocAs(side Side, size, align uint32) (xll.Addr, error) {
	if size == 0 {
		size = 1
	}
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("alignment %d is not a power of two", align).
			Build()
	}

	for i, b := range s.free {
		start := xll.Addr(abi.AlignTo64(uint64(b.addr), uint64(align)))
		pad := uint32(start - b.addr)
		if uint64(pad)+uint64(size) > uint64(b.size) {
			continue
		}

		// Split the block: leading pad and trailing remainder go back on the list.
		rest := block{addr: start + xll.Addr(size), size: b.size - pad - size}
		s.free = append(s.free[:i], s.free[i+1:]...)
		if pad > 0 {
			s.insertFree(block{addr: b.addr, size: pad})
		}
		if rest.size > 0 {
			s.insertFree(rest)
		}

		clear(s.mem[start : start+xll.Addr(size)])
		s.live[start] = allocation{size: size, side: side}
		Logger().Debug("alloc",
			zap.Uint64("addr", uint64(start)),
			zap.Uint32("size", size),
			zap.Stringer("side", side))
		return start, nil
	}

	return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
}

// Free releases a heap allocation. Freeing null is a no-op; freeing an
// address that is not a live allocation is an invariant violation.
func (s *Space) Free(ptr xll.Addr) {
	if ptr == 0 {
		return
	}
	a, ok := s.live[ptr]
	if !ok {
		invariant.Fail("free of unallocated address", zap.Uint64("addr", uint64(ptr)))
		return
	}
	delete(s.live, ptr)
	s.insertFree(block{addr: ptr, size: a.size})
	Logger().Debug("free", zap.Uint64("addr", uint64(ptr)), zap.Stringer("side", a.side))
}

// Owner reports which side allocated ptr.
func (s *Space) Owner(ptr xll.Addr) (Side, bool) {
	a, ok := s.live[ptr]
	return a.side, ok
}

// SizeOf reports the size of the live allocation at ptr.
func (s *Space) SizeOf(ptr xll.Addr) (uint32, bool) {
	a, ok := s.live[ptr]
	return a.size, ok
}

// Live returns the number of outstanding heap allocations.
func (s *Space) Live() int { return len(s.live) }

// LiveBy returns the number of outstanding heap allocations made by side.
func (s *Space) LiveBy(side Side) int {
	n := 0
	for _, a := range s.live {
		if a.side == side {
			n++
		}
	}
	return n
}

// insertFree keeps the free list sorted and coalesces neighbours.
func (s *Space) insertFree(b block) {
	i := sort.Search(len(s.free), func(i int) bool { return s.free[i].addr > b.addr })
	s.free = append(s.free, block{})
	copy(s.free[i+1:], s.free[i:])
	s.free[i] = b

	if i+1 < len(s.free) && s.free[i].addr+xll.Addr(s.free[i].size) == s.free[i+1].addr {
		s.free[i].size += s.free[i+1].size
		s.free = append(s.free[:i+1], s.free[i+2:]...)
	}
	if i > 0 && s.free[i-1].addr+xll.Addr(s.free[i-1].size) == s.free[i].addr {
		s.free[i-1].size += s.free[i].size
		s.free = append(s.free[:i], s.free[i+1:]...)
	}
}

func (s *Space) check(addr xll.Addr, length uint64) error {
	if addr == 0 {
		return errors.New(errors.PhaseMemory, errors.KindNilPointer).
			Detail("access of %d bytes at null", length).
			Build()
	}
	end, ok := abi.SafeAddU64(uint64(addr), length)
	if !ok || end > uint64(len(s.mem)) {
		return errors.OutOfBounds(errors.PhaseMemory, uint64(addr), length, uint64(len(s.mem)))
	}
	return nil
}

// Read returns a copy of length bytes at addr.
func (s *Space) Read(addr xll.Addr, length uint32) ([]byte, error) {
	if err := s.check(addr, uint64(length)); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, s.mem[addr:])
	return out, nil
}

// View returns the live bytes at addr without copying. The slice aliases the
// space and is invalidated by the next allocation that reuses the range.
func (s *Space) View(addr xll.Addr, length uint32) ([]byte, error) {
	if err := s.check(addr, uint64(length)); err != nil {
		return nil, err
	}
	return s.mem[addr : addr+xll.Addr(length) : addr+xll.Addr(length)], nil
}

// Write copies data to addr.
func (s *Space) Write(addr xll.Addr, data []byte) error {
	if err := s.check(addr, uint64(len(data))); err != nil {
		return err
	}
	copy(s.mem[addr:], data)
	return nil
}

func (s *Space) ReadU8(addr xll.Addr) (uint8, error) {
	if err := s.check(addr, 1); err != nil {
		return 0, err
	}
	return s.mem[addr], nil
}

func (s *Space) ReadU16(addr xll.Addr) (uint16, error) {
	if err := s.check(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s.mem[addr:]), nil
}

func (s *Space) ReadU32(addr xll.Addr) (uint32, error) {
	if err := s.check(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s.mem[addr:]), nil
}

func (s *Space) ReadU64(addr xll.Addr) (uint64, error) {
	if err := s.check(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(s.mem[addr:]), nil
}

func (s *Space) WriteU8(addr xll.Addr, value uint8) error {
	if err := s.check(addr, 1); err != nil {
		return err
	}
	s.mem[addr] = value
	return nil
}

func (s *Space) WriteU16(addr xll.Addr, value uint16) error {
	if err := s.check(addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(s.mem[addr:], value)
	return nil
}

func (s *Space) WriteU32(addr xll.Addr, value uint32) error {
	if err := s.check(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s.mem[addr:], value)
	return nil
}

func (s *Space) WriteU64(addr xll.Addr, value uint64) error {
	if err := s.check(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(s.mem[addr:], value)
	return nil
}

// ReadPtr reads a pointer-width value.
func (s *Space) ReadPtr(addr xll.Addr) (xll.Addr, error) {
	if s.ptrSize == 4 {
		v, err := s.ReadU32(addr)
		return xll.Addr(v), err
	}
	v, err := s.ReadU64(addr)
	return xll.Addr(v), err
}

// WritePtr writes a pointer-width value. On 32-bit spaces the value must fit.
func (s *Space) WritePtr(addr xll.Addr, ptr xll.Addr) error {
	if s.ptrSize == 4 {
		if uint64(ptr) > 0xFFFFFFFF {
			return errors.Overflow(errors.PhaseMemory, nil, uint64(ptr), "32-bit pointer")
		}
		return s.WriteU32(addr, uint32(ptr))
	}
	return s.WriteU64(addr, uint64(ptr))
}

type sideAllocator struct {
	space *Space
	side  Side
}

func (a sideAllocator) Alloc(size, align uint32) (xll.Addr, error) {
	return a.space.AllocAs(a.side, size, align)
}

func (a sideAllocator) Free(ptr xll.Addr) { a.space.Free(ptr) }

// As returns an allocator that tags its allocations with side.
func (s *Space) As(side Side) xll.Allocator {
	return sideAllocator{space: s, side: side}
}
