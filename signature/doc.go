// Package signature derives the host's registration type text from Go
// function types.
//
// Each result and parameter type maps to one code from a fixed table, and
// the requested capabilities append suffixes in a fixed order:
//
//	sig, err := signature.Encode(func(x float64, v *oper.Oper) signature.CString { ... },
//		signature.ThreadSafe)
//	// sig.String() == "CBQ$"
//
// Capability combinations the host rejects are reported together in one
// *errors.ViolationsError, one entry per broken rule.
package signature
