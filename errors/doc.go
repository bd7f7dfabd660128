// Package errors provides structured error types for the xll-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go/wire type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("args", "3").
//		GoType("int64").
//		XLType("xltypeInt").
//		Detail("value does not fit in 32 bits").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseDecode, path, "value.Num", "xltypeStr")
//	err := errors.OutOfBounds(errors.PhaseMemory, addr, 8, size)
//
// Validations that check several rules at once return a ViolationsError that
// lists every broken rule instead of stopping at the first one.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
