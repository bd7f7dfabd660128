package memory

import (
	"sync"

	xll "github.com/wippyai/xll-runtime"
)

// AllocationList records heap allocations made while lowering a value so
// that a failure part-way through can free everything already placed.
type AllocationList struct {
	ptrs []xll.Addr
}

var allocationListPool = sync.Pool{
	New: func() any {
		return &AllocationList{ptrs: make([]xll.Addr, 0, 8)}
	},
}

func NewAllocationList() *AllocationList {
	return allocationListPool.Get().(*AllocationList)
}

const maxPooledAllocationCapacity = 128

// Release returns the list to the pool. The list is invalid afterwards.
func (al *AllocationList) Release() {
	if cap(al.ptrs) > maxPooledAllocationCapacity {
		return
	}
	al.Reset()
	allocationListPool.Put(al)
}

// FreeAndRelease frees every recorded allocation, then releases the list.
func (al *AllocationList) FreeAndRelease(allocator xll.Allocator) {
	al.Free(allocator)
	al.Release()
}

func (al *AllocationList) Add(ptr xll.Addr) {
	al.ptrs = append(al.ptrs, ptr)
}

// Free releases recorded allocations newest first.
func (al *AllocationList) Free(allocator xll.Allocator) {
	if allocator == nil {
		return
	}
	for i := len(al.ptrs) - 1; i >= 0; i-- {
		if al.ptrs[i] != 0 {
			allocator.Free(al.ptrs[i])
		}
	}
	al.ptrs = al.ptrs[:0]
}

func (al *AllocationList) Reset() {
	al.ptrs = al.ptrs[:0]
}

func (al *AllocationList) Count() int {
	return len(al.ptrs)
}
