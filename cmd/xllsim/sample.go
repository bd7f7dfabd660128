package main

import (
	"math"
	"strings"

	"github.com/wippyai/xll-runtime/addin"
	"github.com/wippyai/xll-runtime/fp12"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/signature"
	"github.com/wippyai/xll-runtime/value"
)

const sampleManifest = `
name = "Sample Tools"

[[function]]
procedure = "xlAdd"
name = "ADD"
arguments = ["x", "y"]
category = "Math"
help = "Adds two numbers"
argument_help = ["first number", "second number"]
attributes = ["thread-safe"]

[[function]]
procedure = "xlHypot"
name = "HYPOT"
arguments = ["x", "y"]
category = "Math"
attributes = ["thread-safe", "cluster-safe"]

[[function]]
procedure = "xlGreet"
name = "GREET"
arguments = ["who"]
category = "Text"

[[function]]
procedure = "xlUpper"
name = "UPPER"
arguments = ["text"]
category = "Text"

[[function]]
procedure = "xlKind"
name = "KIND"
arguments = ["value"]
category = "Information"
attributes = ["volatile"]

[[function]]
procedure = "xlScale"
name = "SCALE"
arguments = ["values"]
category = "Math"

[[function]]
procedure = "xlLater"
name = "LATER"
arguments = ["x"]
category = "Math"
`

const defaultCalls = "ADD 2 3;HYPOT 3 4;GREET world;UPPER hello;KIND TRUE;KIND 1.5;SCALE 7;LATER 21"

type sample struct {
	addin   *addin.AddIn
	pending []pendingCall
}

type pendingCall struct {
	handle *oper.Handle
	x      float64
}

func (s *sample) export() error {
	exports := map[string]any{
		"xlAdd":   func(x, y float64) float64 { return x + y },
		"xlHypot": math.Hypot,
		"xlGreet": func(who signature.CString) signature.CString { return "hello, " + who },
		"xlUpper": func(text signature.WString) signature.WString {
			return signature.WString(strings.ToUpper(string(text)))
		},
		"xlKind": func(v value.Value) signature.CString { return signature.CString(v.Kind().String()) },
		"xlScale": func(arr *fp12.Array) *fp12.Array {
			for i := range arr.Data {
				arr.Data[i] *= 10
			}
			return arr
		},
		"xlLater": func(x float64, h *oper.Handle) {
			s.pending = append(s.pending, pendingCall{handle: h, x: x})
		},
	}
	for proc, fn := range exports {
		if err := s.addin.Export(proc, fn); err != nil {
			return err
		}
	}
	return nil
}

// complete answers the asynchronous calls made during evaluation.
func (s *sample) complete() int {
	n := 0
	for _, p := range s.pending {
		if err := s.addin.AsyncReturn(p.handle, value.Num(p.x*2)); err == nil {
			n++
		}
	}
	s.pending = nil
	return n
}
