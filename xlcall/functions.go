package xlcall

import "fmt"

// Function selects the host operation performed by a callback.
type Function int32

const (
	bitSpecial Function = 0x4000
	bitCommand Function = 0x8000
)

// Callback-only functions.
const (
	FnFree             Function = 0 | bitSpecial
	FnStack            Function = 1 | bitSpecial
	FnCoerce           Function = 2 | bitSpecial
	FnSet              Function = 3 | bitSpecial
	FnSheetID          Function = 4 | bitSpecial
	FnSheetNm          Function = 5 | bitSpecial
	FnAbort            Function = 6 | bitSpecial
	FnGetInst          Function = 7 | bitSpecial
	FnGetHwnd          Function = 8 | bitSpecial
	FnGetName          Function = 9 | bitSpecial
	FnEnableXLMsgs     Function = 10 | bitSpecial
	FnDisableXLMsgs    Function = 11 | bitSpecial
	FnDefineBinaryName Function = 12 | bitSpecial
	FnGetBinaryName    Function = 13 | bitSpecial
	FnGetFmlaInfo      Function = 14 | bitSpecial
	FnGetMouseInfo     Function = 15 | bitSpecial
	FnAsyncReturn      Function = 16 | bitSpecial
	FnEventRegister    Function = 17 | bitSpecial
	FnRunningOnCluster Function = 18 | bitSpecial
	FnGetInstPtr       Function = 19 | bitSpecial
)

// Worksheet and command functions used by this library.
const (
	FnRegister   Function = 149
	FnDialogBox  Function = 161
	FnUnregister Function = 201
	FnAlert      Function = 118 | bitCommand
	FnMessage    Function = 122 | bitCommand
)

var functionNames = map[Function]string{
	FnFree:             "xlFree",
	FnStack:            "xlStack",
	FnCoerce:           "xlCoerce",
	FnSet:              "xlSet",
	FnSheetID:          "xlSheetId",
	FnSheetNm:          "xlSheetNm",
	FnAbort:            "xlAbort",
	FnGetInst:          "xlGetInst",
	FnGetHwnd:          "xlGetHwnd",
	FnGetName:          "xlGetName",
	FnEnableXLMsgs:     "xlEnableXLMsgs",
	FnDisableXLMsgs:    "xlDisableXLMsgs",
	FnDefineBinaryName: "xlDefineBinaryName",
	FnGetBinaryName:    "xlGetBinaryName",
	FnGetFmlaInfo:      "xlGetFmlaInfo",
	FnGetMouseInfo:     "xlGetMouseInfo",
	FnAsyncReturn:      "xlAsyncReturn",
	FnEventRegister:    "xlEventRegister",
	FnRunningOnCluster: "xlRunningOnCluster",
	FnGetInstPtr:       "xlGetInstPtr",
	FnRegister:         "xlfRegister",
	FnDialogBox:        "xlfDialogBox",
	FnUnregister:       "xlfUnregister",
	FnAlert:            "xlcAlert",
	FnMessage:          "xlcMessage",
}

func (f Function) String() string {
	if name, ok := functionNames[f]; ok {
		return name
	}
	return fmt.Sprintf("xlfn(%d)", int32(f))
}

// IsCommand reports whether f is a command-equivalent function.
func (f Function) IsCommand() bool { return f&bitCommand != 0 }

// IsCallbackOnly reports whether f is only available through the callback.
func (f Function) IsCallbackOnly() bool { return f&bitSpecial != 0 }
