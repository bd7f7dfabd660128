package registry

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/signature"
	"github.com/wippyai/xll-runtime/xlcall"
)

// MacroType tells the host how a procedure may be used.
type MacroType int

const (
	// MacroHidden registers a function that does not appear in the
	// function wizard.
	MacroHidden MacroType = 0
	// MacroFunction registers a worksheet function.
	MacroFunction MacroType = 1
	// MacroCommand registers a command.
	MacroCommand MacroType = 2
)

func (m MacroType) String() string {
	switch m {
	case MacroHidden:
		return "hidden"
	case MacroFunction:
		return "function"
	case MacroCommand:
		return "command"
	}
	return fmt.Sprintf("macro(%d)", int(m))
}

// ParseMacroType returns the macro type with the given name.
func ParseMacroType(s string) (MacroType, bool) {
	switch s {
	case "", "function":
		return MacroFunction, true
	case "hidden":
		return MacroHidden, true
	case "command":
		return MacroCommand, true
	}
	return 0, false
}

// Function describes how an exported procedure is presented to the host.
type Function struct {
	// Procedure is the exported name the host calls.
	Procedure string
	// Name is the function text shown in formulas. Empty means Procedure.
	Name         string
	Arguments    []string
	Category     string
	Shortcut     string
	HelpTopic    string
	Help         string
	ArgumentHelp []string
	Macro        MacroType
	Attributes   signature.Attributes
}

// Limits of the registration arguments.
const (
	// fixedArgs precede the per-argument help strings.
	fixedArgs   = 10
	maxTextLen  = xlcall.MaxNarrowLength
	maxHelpArgs = xlcall.MaxArgumentHelp
)

// FunctionText returns the name shown in formulas.
func (f Function) FunctionText() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Procedure
}

// ArgumentText returns the comma-separated argument names.
func (f Function) ArgumentText() string { return strings.Join(f.Arguments, ",") }

// validate checks f against sig, reporting every problem at once.
func (f Function) validate(sig signature.Signature) error {
	var v []errors.Violation
	if f.Procedure == "" {
		v = append(v, errors.Violation{Rule: "procedure-required"})
	}
	for _, text := range []struct{ field, s string }{
		{"name", f.FunctionText()},
		{"arguments", f.ArgumentText()},
		{"category", f.Category},
		{"help", f.Help},
	} {
		if utf8.RuneCountInString(text.s) > maxTextLen {
			v = append(v, errors.Violation{Rule: "text-too-long", Detail: text.field})
		}
	}
	if len(f.Arguments) > sig.NumParams() {
		v = append(v, errors.Violation{Rule: "too-many-argument-names"})
	}
	if len(f.ArgumentHelp) > sig.NumParams() || len(f.ArgumentHelp) > maxHelpArgs {
		v = append(v, errors.Violation{Rule: "too-many-argument-help"})
	}
	if f.Macro < MacroHidden || f.Macro > MacroCommand {
		v = append(v, errors.Violation{Rule: "macro-type"})
	}
	if f.Macro == MacroCommand && sig.Attributes()&(signature.ThreadSafe|signature.ClusterSafe|signature.Asynchronous) != 0 {
		v = append(v, errors.Violation{Rule: "command-capabilities", Detail: sig.Attributes().String()})
	}
	if len(v) > 0 {
		return errors.NewViolationsError(errors.PhaseRegister, errors.KindRegistration, f.Procedure, v)
	}
	return nil
}
