// Package addin runs the lifecycle of an add-in.
//
// An AddIn owns the address space shared with the host, the boundary the
// host is called back through and the table of registered functions. Go
// functions are bound to procedure names with Export and described by a
// TOML manifest:
//
//	name = "Sample Tools"
//
//	[[function]]
//	procedure = "xlAdd"
//	name = "ADD"
//	arguments = ["x", "y"]
//	category = "Math"
//	attributes = ["thread-safe"]
//
// AutoOpen registers every manifest function, AutoClose withdraws them, and
// Dispatch converts host argument records into Go values, calls the export
// and returns its result as a self-owned record the host gives back through
// AutoFree. While open, a failed runtime assertion asks the host to unload
// the add-in.
package addin
