// Package fp12 reads and writes the host's floating-point array, the
// by-reference matrix type registered with the K% code.
package fp12
