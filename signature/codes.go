package signature

import (
	"reflect"

	"github.com/wippyai/xll-runtime/fp12"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/pstring"
	"github.com/wippyai/xll-runtime/value"
)

// Code is one unit of type text: a type character, optionally followed by
// the wide marker.
type Code string

const (
	CodeVoid        Code = ">"
	CodeBool        Code = "A"
	CodeFloat       Code = "B"
	CodeCString     Code = "C"
	CodeWString     Code = "C%"
	CodeCounted     Code = "D"
	CodeCountedWide Code = "D%"
	CodeFloatRef    Code = "E"
	CodeUint16      Code = "H"
	CodeInt16       Code = "I"
	CodeInt32       Code = "J"
	CodeArray       Code = "K%"
	CodeBoolRef     Code = "L"
	CodeInt16Ref    Code = "M"
	CodeInt32Ref    Code = "N"
	CodeValue       Code = "Q"
	CodeReference   Code = "U"
	CodeHandle      Code = "X"
	CodeClusterSafe Code = "&"
	CodeVolatile    Code = "!"
	CodeThreadSafe  Code = "$"
	CodeMacroSheet  Code = "#"
)

// CString is a NUL-terminated narrow string passed by pointer.
type CString string

// WString is a NUL-terminated wide string passed by pointer.
type WString string

// CountedString and CountedWString are length-prefixed strings passed by
// pointer.
type (
	CountedString  = pstring.Narrow
	CountedWString = pstring.Wide
)

// wideMarker follows a type character to select the wide variant.
const wideMarker = '%'

var (
	typeVoid      = reflect.TypeOf(struct{}{})
	typeValue     = reflect.TypeOf((*value.Value)(nil)).Elem()
	typeOper      = reflect.TypeOf(oper.Oper{})
	typeReference = reflect.TypeOf(oper.Reference{})
	typeHandle    = reflect.TypeOf(oper.Handle{})
	typeArray     = reflect.TypeOf(fp12.Array{})
)

var codeList = []struct {
	t    reflect.Type
	code Code
}{
	{typeVoid, CodeVoid},
	{reflect.TypeOf(false), CodeBool},
	{reflect.TypeOf(float64(0)), CodeFloat},
	{reflect.TypeOf(CString("")), CodeCString},
	{reflect.TypeOf(WString("")), CodeWString},
	{reflect.TypeOf(CountedString{}), CodeCounted},
	{reflect.TypeOf(CountedWString{}), CodeCountedWide},
	{reflect.TypeOf((*float64)(nil)), CodeFloatRef},
	{reflect.TypeOf(uint16(0)), CodeUint16},
	{reflect.TypeOf(int16(0)), CodeInt16},
	{reflect.TypeOf(int32(0)), CodeInt32},
	{reflect.PointerTo(typeArray), CodeArray},
	{reflect.TypeOf((*bool)(nil)), CodeBoolRef},
	{reflect.TypeOf((*int16)(nil)), CodeInt16Ref},
	{reflect.TypeOf((*int32)(nil)), CodeInt32Ref},
	{typeValue, CodeValue},
	{typeOper, CodeValue},
	{reflect.PointerTo(typeOper), CodeValue},
	{typeReference, CodeReference},
	{reflect.PointerTo(typeReference), CodeReference},
	{typeHandle, CodeHandle},
	{reflect.PointerTo(typeHandle), CodeHandle},
}

var (
	codeTable = make(map[reflect.Type]Code, len(codeList))
	typeCodes = make(map[Code]bool, len(codeList))
)

func init() {
	for _, e := range codeList {
		codeTable[e.t] = e.code
		typeCodes[e.code] = true
	}
}

// CodeOf returns the code for a Go type.
func CodeOf(t reflect.Type) (Code, bool) {
	c, ok := codeTable[t]
	return c, ok
}

// IsType reports whether c is a type code rather than a capability suffix.
func (c Code) IsType() bool { return typeCodes[c] }
