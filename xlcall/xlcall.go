package xlcall

import (
	"fmt"

	"github.com/wippyai/xll-runtime/errors"
)

// Type is the discriminant stored in the low 12 bits of a record's type word.
type Type uint32

const (
	TypeNum     Type = 0x0001
	TypeStr     Type = 0x0002
	TypeBool    Type = 0x0004
	TypeRef     Type = 0x0008
	TypeErr     Type = 0x0010
	TypeFlow    Type = 0x0020
	TypeMulti   Type = 0x0040
	TypeMissing Type = 0x0080
	TypeNil     Type = 0x0100
	TypeSRef    Type = 0x0400
	TypeInt     Type = 0x0800
	TypeBigData Type = TypeStr | TypeInt
)

// Flag bits share the type word with the discriminant.
const (
	// BitXLFree marks memory the host allocated; only xlFree may release it.
	BitXLFree uint32 = 0x1000
	// BitDLLFree marks memory this module allocated; it is released locally.
	BitDLLFree uint32 = 0x4000

	TypeMask uint32 = 0x0FFF
	FlagMask uint32 = 0xF000

	// OwnershipMask covers the two flag bits this library manages. The other
	// high-nibble bits are reserved and must stay zero.
	OwnershipMask = BitXLFree | BitDLLFree
)

var typeNames = map[Type]string{
	TypeNum:     "xltypeNum",
	TypeStr:     "xltypeStr",
	TypeBool:    "xltypeBool",
	TypeRef:     "xltypeRef",
	TypeErr:     "xltypeErr",
	TypeFlow:    "xltypeFlow",
	TypeMulti:   "xltypeMulti",
	TypeMissing: "xltypeMissing",
	TypeNil:     "xltypeNil",
	TypeSRef:    "xltypeSRef",
	TypeInt:     "xltypeInt",
	TypeBigData: "xltypeBigData",
}

func (t Type) String() string {
	if name, ok := typeNames[t&Type(TypeMask)]; ok {
		return name
	}
	return fmt.Sprintf("xltype(0x%04x)", uint32(t))
}

// Known reports whether t (masked) is one of the twelve defined tags.
func (t Type) Known() bool {
	_, ok := typeNames[t&Type(TypeMask)]
	return ok
}

// NeedsRelease reports whether values of this type own out-of-line memory.
func (t Type) NeedsRelease() bool {
	switch t & Type(TypeMask) {
	case TypeStr, TypeRef, TypeMulti:
		return true
	}
	return false
}

// Error is a worksheet error value.
type Error int32

const (
	ErrNull        Error = 0
	ErrDiv0        Error = 7
	ErrValue       Error = 15
	ErrRef         Error = 23
	ErrName        Error = 29
	ErrNum         Error = 36
	ErrNA          Error = 42
	ErrGettingData Error = 43
)

var errorNames = map[Error]string{
	ErrNull:        "#NULL!",
	ErrDiv0:        "#DIV/0!",
	ErrValue:       "#VALUE!",
	ErrRef:         "#REF!",
	ErrName:        "#NAME?",
	ErrNum:         "#NUM!",
	ErrNA:          "#N/A",
	ErrGettingData: "#GETTING_DATA",
}

func (e Error) String() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("#ERR(%d)", int32(e))
}

// Valid reports whether e is a defined worksheet error.
func (e Error) Valid() bool {
	_, ok := errorNames[e]
	return ok
}

// Ret is the status code returned by the host callback.
type Ret int32

const (
	RetSuccess                Ret = 0
	RetAbort                  Ret = 1
	RetInvXlfn                Ret = 2
	RetInvCount               Ret = 4
	RetInvXloper              Ret = 8
	RetStackOvfl              Ret = 16
	RetFailed                 Ret = 32
	RetUncalced               Ret = 64
	RetNotThreadSafe          Ret = 128
	RetInvAsynchronousContext Ret = 256
	RetNotClusterSafe         Ret = 512
)

var retNames = map[Ret]string{
	RetSuccess:                "xlretSuccess",
	RetAbort:                  "xlretAbort",
	RetInvXlfn:                "xlretInvXlfn",
	RetInvCount:               "xlretInvCount",
	RetInvXloper:              "xlretInvXloper",
	RetStackOvfl:              "xlretStackOvfl",
	RetFailed:                 "xlretFailed",
	RetUncalced:               "xlretUncalced",
	RetNotThreadSafe:          "xlretNotThreadSafe",
	RetInvAsynchronousContext: "xlretInvAsynchronousContext",
	RetNotClusterSafe:         "xlretNotClusterSafe",
}

func (r Ret) String() string {
	if name, ok := retNames[r]; ok {
		return name
	}
	return fmt.Sprintf("xlret(%d)", int32(r))
}

// OK reports whether the call succeeded.
func (r Ret) OK() bool { return r == RetSuccess }

// Err converts a failed status into a structured error. Success yields nil.
func (r Ret) Err() error {
	if r == RetSuccess {
		return nil
	}
	return errors.New(errors.PhaseCall, errors.KindBoundary).
		Value(r).
		Detail("host returned %s", r).
		Build()
}

// FlowOp selects the meaning of a flow-control record.
type FlowOp uint8

const (
	FlowHalt    FlowOp = 1
	FlowGoto    FlowOp = 2
	FlowRestart FlowOp = 8
	FlowPause   FlowOp = 16
	FlowResume  FlowOp = 64
)

func (f FlowOp) String() string {
	switch f {
	case FlowHalt:
		return "halt"
	case FlowGoto:
		return "goto"
	case FlowRestart:
		return "restart"
	case FlowPause:
		return "pause"
	case FlowResume:
		return "resume"
	}
	return fmt.Sprintf("flow(%d)", uint8(f))
}

// Event identifies host events for xlEventRegister.
type Event int32

const (
	EventCalculationEnded    Event = 1
	EventCalculationCanceled Event = 2
)

// Limits imposed by the host.
const (
	MaxArgs         = 255
	MaxNarrowLength = 255
	MaxWideLength   = 32767
	MaxArgumentHelp = 245
	MaxRows         = 1048576
	MaxColumns      = 16384
)

// EntryPoint is the exported symbol through which the host is called back.
const EntryPoint = "MdCallBack12"
