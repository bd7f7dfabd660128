// Package hostsim simulates the spreadsheet host on the far side of the
// call boundary.
//
// A Host implements the callback entry point over a memory.Space: it
// decodes argument records, answers the callback-only functions an add-in
// uses, keeps a table of registered functions and allocates every payload
// it returns on the host side of the space, so leaks and foreign frees show
// up in Space.LiveBy. Fail injects status codes for a function.
//
// With an add-in's exports attached, Evaluate plays the role of a cell
// formula: it builds argument records, dispatches to the add-in, copies
// the result and calls the add-in's auto-free hook for self-owned results.
package hostsim
