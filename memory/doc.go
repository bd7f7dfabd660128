// Package memory simulates the address space shared by the host and an add-in.
//
// A Space has two segments. The heap is managed by a first-fit allocator
// that records which side of the boundary made each allocation. The stack
// grows down from a fixed base and is carved into Frames, standing in for
// the caller's stack during a callback. Records whose address lies between
// the stack limit and base are treated as host-provided by the value layer.
//
// # Contents
//
//   - space.go: Space, heap allocator and typed little-endian access
//   - frame.go: Stack frames
//   - allocations.go: AllocationList for unwinding partial lowerings
package memory
