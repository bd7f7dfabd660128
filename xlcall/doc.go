// Package xlcall defines the constants of the host's C calling convention:
// type tags and ownership flag bits of the value record, worksheet error codes,
// callback status codes, function numbers, flow-control operations and the
// host's size limits.
package xlcall
