// Package value is the safe sum type for host values.
//
// Value is a closed interface with one implementation per alternative of
// the host's tagged union. Code outside the wire codec works with Values
// and never touches record bytes; package oper converts at the boundary.
//
// # Alternatives
//
// The canonical order, which is also the alternative index:
//
//	Num Str Bool Err Int SRef Ref Multi Flow BigData Missing Nil
//
// # Conversion
//
// Go values are converted to the single best alternative of an
// AlternativeSet by Resolve, which ranks candidates the way a braced
// initializer picks an overload: exact over promotion over conversion over
// the catch-all arithmetic alternative. Ties and empty candidate lists are
// errors, never broken by list order.
package value
