package hostsim

import (
	"sort"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/signature"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

// Macro types accepted by xlfRegister.
const (
	MacroHidden   = 0
	MacroFunction = 1
	MacroCommand  = 2
)

// registerFixedArgs is the number of xlfRegister arguments before the
// per-argument help strings.
const registerFixedArgs = 10

// Registration is a function the add-in registered.
type Registration struct {
	ID           float64
	Module       string
	Procedure    string
	TypeText     string
	FunctionText string
	ArgumentText string
	MacroType    int
	Category     string
	Shortcut     string
	HelpTopic    string
	FunctionHelp string
	ArgumentHelp []string
	Signature    signature.Signature
}

func optStr(args []value.Value, i int) (string, bool) {
	switch x := arg(args, i).(type) {
	case value.Str:
		return x.String(), true
	case value.Missing, value.Nil:
		return "", true
	}
	return "", false
}

func (h *Host) register(args []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	if len(args) < 3 || len(args) > xlcall.MaxArgs {
		return nil, xlcall.RetInvCount
	}
	r := &Registration{MacroType: MacroFunction}
	fields := []*string{
		&r.Module, &r.Procedure, &r.TypeText, &r.FunctionText, &r.ArgumentText,
		nil, &r.Category, &r.Shortcut, &r.HelpTopic, &r.FunctionHelp,
	}
	for i, f := range fields {
		if f == nil {
			continue
		}
		s, ok := optStr(args, i)
		if !ok {
			return nil, xlcall.RetInvXloper
		}
		*f = s
	}
	switch mt := arg(args, 5).(type) {
	case value.Num:
		r.MacroType = int(mt)
	case value.Int:
		r.MacroType = int(mt)
	case value.Missing, value.Nil:
	default:
		return nil, xlcall.RetInvXloper
	}
	for i := registerFixedArgs; i < len(args); i++ {
		s, ok := optStr(args, i)
		if !ok {
			return nil, xlcall.RetInvXloper
		}
		r.ArgumentHelp = append(r.ArgumentHelp, s)
	}

	if r.Module != h.name || r.Procedure == "" {
		Logger().Warn("xlfRegister rejected",
			zap.String("module", r.Module),
			zap.String("procedure", r.Procedure))
		return value.Err(xlcall.ErrValue), xlcall.RetSuccess
	}
	sig, err := signature.Parse(r.TypeText)
	if err != nil || len(r.ArgumentHelp) > sig.NumParams() {
		Logger().Warn("xlfRegister type text rejected",
			zap.String("procedure", r.Procedure),
			zap.String("type_text", r.TypeText),
			zap.Error(err))
		return value.Err(xlcall.ErrValue), xlcall.RetSuccess
	}
	if r.MacroType < MacroHidden || r.MacroType > MacroCommand {
		return value.Err(xlcall.ErrValue), xlcall.RetSuccess
	}
	r.Signature = sig

	for _, prev := range h.registrations {
		if prev.Procedure == r.Procedure {
			r.ID = prev.ID
			h.registrations[r.ID] = r
			return value.Num(r.ID), xlcall.RetSuccess
		}
	}
	r.ID = h.nextID
	h.nextID++
	h.registrations[r.ID] = r
	h.unloaded = false
	return value.Num(r.ID), xlcall.RetSuccess
}

// unregister removes one registration by id, or every registration when
// given the add-in's own name.
func (h *Host) unregister(args []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	switch x := arg(args, 0).(type) {
	case value.Num:
		if _, ok := h.registrations[float64(x)]; !ok {
			return value.Bool(false), xlcall.RetSuccess
		}
		delete(h.registrations, float64(x))
		return value.Bool(true), xlcall.RetSuccess
	case value.Str:
		if x.String() != h.name {
			return value.Bool(false), xlcall.RetSuccess
		}
		clear(h.registrations)
		h.unloaded = true
		return value.Bool(true), xlcall.RetSuccess
	}
	return nil, xlcall.RetInvXloper
}

// Registrations returns the live registrations ordered by id.
func (h *Host) Registrations() []Registration {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Registration, 0, len(h.registrations))
	for _, r := range h.registrations {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup finds a registration by function text or procedure name.
func (h *Host) Lookup(name string) (Registration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.lookup(name)
	if !ok {
		return Registration{}, false
	}
	return *r, true
}

func (h *Host) lookup(name string) (*Registration, bool) {
	for _, r := range h.registrations {
		if r.FunctionText == name || r.Procedure == name {
			return r, true
		}
	}
	return nil, false
}
