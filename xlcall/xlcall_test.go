package xlcall

import (
	"errors"
	"testing"

	xerrors "github.com/wippyai/xll-runtime/errors"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeNum, "xltypeNum"},
		{TypeBigData, "xltypeBigData"},
		{TypeStr | Type(BitXLFree), "xltypeStr"},
		{Type(0x0200), "xltype(0x0200)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("%#x.String() = %q, want %q", uint32(tt.typ), got, tt.want)
		}
	}
}

func TestTypeNeedsRelease(t *testing.T) {
	for _, typ := range []Type{TypeStr, TypeRef, TypeMulti} {
		if !typ.NeedsRelease() {
			t.Errorf("%s should need release", typ)
		}
	}
	for _, typ := range []Type{TypeNum, TypeBool, TypeErr, TypeInt, TypeFlow, TypeSRef, TypeBigData, TypeMissing, TypeNil} {
		if typ.NeedsRelease() {
			t.Errorf("%s should not need release", typ)
		}
	}
}

func TestFlagBitsOutsideTypeMask(t *testing.T) {
	for typ := range typeNames {
		if uint32(typ)&FlagMask != 0 {
			t.Errorf("%s overlaps flag nibble", typ)
		}
	}
	if BitXLFree&TypeMask != 0 || BitDLLFree&TypeMask != 0 {
		t.Error("ownership bits overlap type mask")
	}
}

func TestRetErr(t *testing.T) {
	if RetSuccess.Err() != nil {
		t.Fatal("success should not produce an error")
	}
	err := RetInvCount.Err()
	if err == nil {
		t.Fatal("expected error for xlretInvCount")
	}
	if !errors.Is(err, &xerrors.Error{Phase: xerrors.PhaseCall, Kind: xerrors.KindBoundary}) {
		t.Errorf("unexpected error classification: %v", err)
	}
}

func TestErrorString(t *testing.T) {
	if ErrDiv0.String() != "#DIV/0!" {
		t.Errorf("ErrDiv0 = %q", ErrDiv0.String())
	}
	if Error(99).Valid() {
		t.Error("99 is not a worksheet error")
	}
}

func TestFunctionClassification(t *testing.T) {
	if !FnFree.IsCallbackOnly() || FnFree.IsCommand() {
		t.Error("xlFree is callback-only")
	}
	if !FnAlert.IsCommand() {
		t.Error("xlcAlert is a command")
	}
	if FnRegister.String() != "xlfRegister" {
		t.Errorf("FnRegister = %q", FnRegister.String())
	}
}
