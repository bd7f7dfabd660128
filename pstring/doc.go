// Package pstring implements length-prefixed ("Pascal") strings.
//
// A PString is one buffer laid out as [length][units...]: the first code
// unit holds the length and there is no terminator or capacity field.
// Narrow strings hold UTF-8 bytes with an 8-bit length (at most 255 units);
// Wide strings hold UTF-16 code units with a 16-bit length capped at the
// host's 32767 character ceiling. Sources that do not fit are truncated
// without error.
//
// Conversion between widths first computes the exact transcoded length,
// allocates once, then transcodes into the new buffer.
package pstring
