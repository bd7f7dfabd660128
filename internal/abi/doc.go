// Package abi provides low-level helpers shared by the record codecs.
//
// # Contents
//
//   - coerce.go: Range-checked conversion of Go numeric values to wire scalars
//   - helpers.go: Overflow-checked arithmetic and alignment
package abi
