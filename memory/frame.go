package memory

import (
	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/internal/abi"
	"github.com/wippyai/xll-runtime/internal/invariant"
	"go.uber.org/zap"
)

// Frame is a region of the stack segment. Frames nest and must be released
// in reverse order of creation.
type Frame struct {
	space    *Space
	saved    xll.Addr
	depth    int
	released bool
}

// PushFrame opens a new stack frame at the current stack pointer.
func (s *Space) PushFrame() *Frame {
	s.frames++
	return &Frame{space: s, saved: s.sp, depth: s.frames}
}

// Depth returns the number of open frames.
func (s *Space) Depth() int { return s.frames }

// StackUsed returns the number of stack bytes currently in use.
func (s *Space) StackUsed() uint32 { return uint32(s.stackBase - s.sp) }

// Alloc reserves zeroed stack memory in the frame.
func (f *Frame) Alloc(size, align uint32) (xll.Addr, error) {
	s := f.space
	if f.released {
		return 0, errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("allocation in released frame").
			Build()
	}
	if f.depth != s.frames {
		return 0, errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("allocation in frame %d while frame %d is innermost", f.depth, s.frames).
			Build()
	}
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("alignment %d is not a power of two", align).
			Build()
	}

	used := uint64(s.stackBase-s.sp) + uint64(size)
	if used > uint64(s.stackBase-s.stackLimit) {
		return 0, errors.New(errors.PhaseMemory, errors.KindAllocation).
			Detail("stack overflow: %d bytes requested, %d free", size, s.sp-s.stackLimit).
			Build()
	}
	top := uint64(s.sp) - uint64(size)
	top &^= uint64(align) - 1
	if top < uint64(s.stackLimit) {
		return 0, errors.New(errors.PhaseMemory, errors.KindAllocation).
			Detail("stack overflow: %d bytes requested, %d free", size, s.sp-s.stackLimit).
			Build()
	}

	s.sp = xll.Addr(top)
	clear(s.mem[s.sp : s.sp+xll.Addr(size)])
	return s.sp, nil
}

// AllocAligned reserves size bytes aligned to the platform pointer width.
func (f *Frame) AllocAligned(size uint32) (xll.Addr, error) {
	return f.Alloc(abi.AlignTo(size, f.space.ptrSize), f.space.ptrSize)
}

// Release pops the frame and everything allocated in it. Releasing a frame
// that is not innermost is an invariant violation and leaves the stack as is.
func (f *Frame) Release() {
	if f.released {
		return
	}
	s := f.space
	if f.depth != s.frames {
		invariant.Fail("stack frame released out of order",
			zap.Int("frame", f.depth),
			zap.Int("innermost", s.frames))
		return
	}
	f.released = true
	s.sp = f.saved
	s.frames--
}
