// Package xllruntime provides a Go implementation of the value layer used by
// spreadsheet add-ins (XLLs) to exchange data with their host.
//
// The host defines a fixed binary calling convention: every value crossing the
// boundary is a 24-byte tagged union followed by a 4-byte type word, and every
// registered function is described by a short signature string. This library
// models that contract in pure Go.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	xllruntime/          Root package with core Memory and Allocator interfaces
//	├── memory/          Address space with heap and stack segments
//	├── xlcall/          Wire constants: type tags, flags, status codes, functions
//	├── pstring/         Length-prefixed narrow/wide string buffers
//	├── value/           Safe sum type and converting-constructor resolution
//	├── oper/            Wire records: storage, lifecycle, provenance, lower/lift
//	├── fp12/            Floating-point array structure
//	├── signature/       Function signature (type text) encoder
//	├── callback/        Call boundary into the host
//	├── registry/        Function registration with explicit handles
//	├── binname/         Persistent binary names
//	├── addin/           Add-in lifecycle and manifest
//	├── hostsim/         Simulated host for tests and demos
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
//	space := memory.NewSpace(memory.Config{PtrSize: 8})
//	host := hostsim.New(space, "sample.xll")
//	b := callback.New(host, space)
//
//	v, _ := b.Arena().New()
//	_ = v.Set("hello")       // resolves to the string alternative
//	name, _ := b.GetName()   // xlGetName through the boundary
//
// Add-ins built on package addin export Go functions, describe them in a
// TOML manifest and let AutoOpen register them:
//
//	a := addin.New(addin.Config{Space: space, Entry: host, Manifest: m})
//	_ = a.Export("xlAdd", func(x, y float64) float64 { return x + y })
//	_ = a.AutoOpen()
//
// # Ownership
//
// A record's provenance is decided when it is constructed. Records that live
// in the stack segment are marked host-must-free, records anywhere else are
// marked self-must-free. Destroy consults that mark: host-owned strings,
// references and arrays are handed back through xlFree, everything else is
// released locally.
//
// # Thread Safety
//
// Nothing in the core synchronizes. A Space, its records and the boundary
// built on it belong to one goroutine at a time.
package xllruntime
