package xllruntime

// Addr is an address in a foreign address space. Zero is the null pointer.
// It is wide enough for both 32-bit and 64-bit host processes.
type Addr uint64

// Memory represents the byte-addressed memory shared with the host.
type Memory interface {
	Read(addr Addr, length uint32) ([]byte, error)
	Write(addr Addr, data []byte) error
	ReadU8(addr Addr) (uint8, error)
	ReadU16(addr Addr) (uint16, error)
	ReadU32(addr Addr) (uint32, error)
	ReadU64(addr Addr) (uint64, error)
	WriteU8(addr Addr, value uint8) error
	WriteU16(addr Addr, value uint16) error
	WriteU32(addr Addr, value uint32) error
	WriteU64(addr Addr, value uint64) error
}

// PointerSizer reports the pointer width of the process the memory belongs to.
type PointerSizer interface {
	PtrSize() uint32
}

// Allocator allocates memory in the shared address space.
type Allocator interface {
	Alloc(size, align uint32) (Addr, error)
	Free(ptr Addr)
}
