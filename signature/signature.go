package signature

import (
	"reflect"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/pstring"
)

// Rule names reported in a ViolationsError.
const (
	RuleNotFunction          = "not-a-function"
	RuleVariadic             = "variadic"
	RuleMultipleResults      = "multiple-results"
	RuleUnsupportedType      = "unsupported-type"
	RuleVoidParameter        = "void-parameter"
	RuleMultipleHandles      = "multiple-handles"
	RuleHandleResult         = "handle-requires-void-result"
	RuleAsyncWithoutHandle   = "asynchronous-without-handle"
	RuleAsyncClusterSafe     = "asynchronous-cluster-safe"
	RuleMacroSheetThreadSafe = "macro-sheet-thread-safe"
	RuleMacroSheetCluster    = "macro-sheet-cluster-safe"
	RuleClusterSafeReference = "cluster-safe-reference"
)

// Signature is the type text of a registered function: the result code,
// one code per parameter, then the capability suffixes.
type Signature struct {
	codes  []Code
	params int
	attrs  Attributes
}

// Result returns the result code.
func (s Signature) Result() Code {
	if len(s.codes) == 0 {
		return ""
	}
	return s.codes[0]
}

// Params returns the parameter codes in declaration order.
func (s Signature) Params() []Code {
	if len(s.codes) == 0 {
		return nil
	}
	return append([]Code(nil), s.codes[1:1+s.params]...)
}

// NumParams returns the number of parameters.
func (s Signature) NumParams() int { return s.params }

// Attributes returns the effective capabilities, including an implied
// Asynchronous.
func (s Signature) Attributes() Attributes { return s.attrs }

// Codes returns every unit in emission order.
func (s Signature) Codes() []Code { return append([]Code(nil), s.codes...) }

func (s Signature) String() string {
	var b strings.Builder
	for _, c := range s.codes {
		b.WriteString(string(c))
	}
	return b.String()
}

// Len returns the length of the type text in characters.
func (s Signature) Len() int {
	n := 0
	for _, c := range s.codes {
		n += len(c)
	}
	return n
}

// Units returns the type text as UTF-16 code units.
func (s Signature) Units() []uint16 {
	return utf16.Encode([]rune(s.String()))
}

// PString returns the type text as a wide length-prefixed string, the form
// passed to registration.
func (s Signature) PString() pstring.Wide {
	return pstring.FromUnits(s.Units())
}

type cacheKey struct {
	fn    reflect.Type
	attrs Attributes
}

type cacheEntry struct {
	sig Signature
	err error
}

var cache sync.Map

// Encode derives the type text for fn, a function value or a function's
// reflect.Type, registered with attrs. Every broken legality rule is
// reported in one ViolationsError.
//
// The host's type text has no 64-bit integer code, so int64, uint64, int
// and uint parameters or results are rejected as unsupported. Use int32
// (J) or float64 (B) instead.
func Encode(fn any, attrs Attributes) (Signature, error) {
	t, ok := fn.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(fn)
	}
	if t == nil || t.Kind() != reflect.Func {
		return Signature{}, errors.NewViolationsError(errors.PhaseSignature, errors.KindIllegalAttributes,
			typeString(t), []errors.Violation{{Rule: RuleNotFunction}})
	}

	key := cacheKey{fn: t, attrs: attrs}
	if e, ok := cache.Load(key); ok {
		ce := e.(cacheEntry)
		return ce.sig, ce.err
	}
	sig, err := encode(t, attrs)
	cache.Store(key, cacheEntry{sig: sig, err: err})
	return sig, err
}

// MustEncode is Encode for package-level registration tables. It panics
// if fn cannot be registered.
func MustEncode(fn any, attrs Attributes) Signature {
	sig, err := Encode(fn, attrs)
	if err != nil {
		panic(err)
	}
	return sig
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func encode(t reflect.Type, attrs Attributes) (Signature, error) {
	var v []errors.Violation
	violate := func(rule, detail string) {
		v = append(v, errors.Violation{Rule: rule, Detail: detail})
	}

	if t.IsVariadic() {
		violate(RuleVariadic, "variadic parameters have no type code")
	}

	codes := make([]Code, 0, 1+t.NumIn()+len(suffixes))
	switch t.NumOut() {
	case 0:
		codes = append(codes, CodeVoid)
	case 1:
		c, ok := CodeOf(t.Out(0))
		if !ok {
			violate(RuleUnsupportedType, "result "+t.Out(0).String())
		}
		codes = append(codes, c)
	default:
		violate(RuleMultipleResults, t.String())
		codes = append(codes, "")
	}

	handles, references := 0, 0
	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		c, ok := CodeOf(in)
		switch {
		case !ok:
			violate(RuleUnsupportedType, "parameter "+in.String())
		case c == CodeVoid:
			violate(RuleVoidParameter, "parameter "+in.String())
		case c == CodeHandle:
			handles++
		case c == CodeReference:
			references++
		}
		codes = append(codes, c)
	}

	if handles > 1 {
		violate(RuleMultipleHandles, "at most one asynchronous handle parameter")
	}
	if handles > 0 {
		if codes[0] != CodeVoid {
			violate(RuleHandleResult, "asynchronous functions return through the handle")
		}
		attrs |= Asynchronous
	} else if attrs.Has(Asynchronous) {
		violate(RuleAsyncWithoutHandle, "asynchronous functions take a handle parameter")
	}
	if attrs.Has(Asynchronous | ClusterSafe) {
		violate(RuleAsyncClusterSafe, "asynchronous functions cannot be cluster-safe")
	}
	if attrs.Has(MacroSheetEquivalent | ThreadSafe) {
		violate(RuleMacroSheetThreadSafe, "macro sheet equivalent functions cannot be thread-safe")
	}
	if attrs.Has(MacroSheetEquivalent | ClusterSafe) {
		violate(RuleMacroSheetCluster, "macro sheet equivalent functions cannot be cluster-safe")
	}
	if attrs.Has(ClusterSafe) && references > 0 {
		violate(RuleClusterSafeReference, "cluster-safe functions cannot take references")
	}

	if len(v) > 0 {
		return Signature{}, errors.NewViolationsError(errors.PhaseSignature, errors.KindIllegalAttributes, t.String(), v)
	}

	for _, s := range suffixes {
		if attrs.Has(s.attr) {
			codes = append(codes, s.code)
		}
	}
	return Signature{codes: codes, params: t.NumIn(), attrs: attrs}, nil
}

// Parse splits registered type text back into codes. It checks the
// grammar only; attribute legality is the encoder's concern.
func Parse(text string) (Signature, error) {
	var codes []Code
	var attrs Attributes
	suffixed := false
	params := -1
	for i := 0; i < len(text); i++ {
		c := Code(text[i : i+1])
		if i+1 < len(text) && text[i+1] == wideMarker {
			if wide := Code(text[i : i+2]); wide.IsType() {
				c = wide
				i++
			}
		}

		if c.IsType() {
			if suffixed {
				return Signature{}, errors.InvalidData(errors.PhaseSignature, nil,
					"type code "+string(c)+" after capability suffix")
			}
			codes = append(codes, c)
			params++
			continue
		}

		suffixed = false
		for _, s := range suffixes {
			if s.code == c {
				attrs |= s.attr
				suffixed = true
			}
		}
		if !suffixed {
			return Signature{}, errors.InvalidData(errors.PhaseSignature, nil,
				"unknown type code "+string(c))
		}
		codes = append(codes, c)
	}
	if params < 0 {
		return Signature{}, errors.InvalidData(errors.PhaseSignature, nil, "empty type text")
	}
	for _, c := range codes[1 : 1+params] {
		if c == CodeHandle {
			attrs |= Asynchronous
		}
	}
	return Signature{codes: codes, params: params, attrs: attrs}, nil
}
