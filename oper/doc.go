// Package oper implements the host's tagged-union wire record.
//
// A record is 32 bytes in foreign memory: 24 bytes of storage followed by a
// 32-bit type word whose low 12 bits are the discriminant and whose high
// nibble carries the ownership flags. The storage layout of each
// alternative depends on the pointer width of the process (see Layout).
//
// # Ownership
//
// Every record is in exactly one ownership state:
//
//   - unowned: Missing and Nil, nothing to release
//   - self-owned (BitDLLFree): payload memory was allocated here and is
//     released locally by Destroy
//   - foreign-owned (BitXLFree): payload memory belongs to the host and is
//     released only through the Releaser, which calls back across the
//     boundary
//
// Construct derives the state from the record's own address: records on
// the stack segment are foreign-owned, everything else is self-owned.
// ConstructWith takes the state explicitly.
//
// # Lifecycle
//
// Construct requires fresh storage. Destroy releases the payload and must
// run exactly once. CopyFrom and MoveFrom construct from another record;
// Assign, AssignMove, Emplace and Set destroy the current payload first.
// None of these are safe for concurrent use of the same record.
package oper
