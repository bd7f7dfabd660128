package hostsim

import (
	"sync"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/memory"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

// DefaultHwnd is the window handle reported by xlGetHwnd.
const DefaultHwnd int32 = 0x00A10C

// Call is one recorded callback.
type Call struct {
	Fn   xlcall.Function
	Args []value.Value
	Ret  xlcall.Ret
}

type handler func(h *Host, args []value.Value, addrs []xll.Addr) (value.Value, xlcall.Ret)

// Host simulates the spreadsheet side of the call boundary over a Space.
// Every payload it produces is allocated on the host side of the space.
type Host struct {
	mu sync.Mutex

	space *memory.Space
	arena *oper.Arena
	name  string
	hwnd  int32

	failures map[xlcall.Function]xlcall.Ret
	calls    []Call

	nextID        float64
	registrations map[float64]*Registration
	unloaded      bool

	binaryNames map[string][]byte
	binaryAddrs map[string]xll.Addr

	events      map[xlcall.Event]string
	nextAsync   xll.Addr
	pending     map[xll.Addr]bool
	asyncResult map[xll.Addr]value.Value

	alerts     []string
	statusText string
	interrupt  bool
	cluster    bool

	exports Exports
}

// New creates a host for the add-in at path name.
func New(space *memory.Space, name string) *Host {
	return &Host{
		space:         space,
		arena:         oper.NewArena(space, nil, oper.WithAllocator(space.As(memory.SideHost))),
		name:          name,
		hwnd:          DefaultHwnd,
		failures:      make(map[xlcall.Function]xlcall.Ret),
		nextID:        1,
		registrations: make(map[float64]*Registration),
		binaryNames:   make(map[string][]byte),
		binaryAddrs:   make(map[string]xll.Addr),
		events:        make(map[xlcall.Event]string),
		nextAsync:     0x7000_0000,
		pending:       make(map[xll.Addr]bool),
		asyncResult:   make(map[xll.Addr]value.Value),
	}
}

var handlers = map[xlcall.Function]handler{
	xlcall.FnFree:             (*Host).free,
	xlcall.FnStack:            (*Host).stack,
	xlcall.FnCoerce:           (*Host).coerce,
	xlcall.FnGetName:          (*Host).getName,
	xlcall.FnGetHwnd:          (*Host).getHwnd,
	xlcall.FnAbort:            (*Host).abort,
	xlcall.FnRegister:         (*Host).register,
	xlcall.FnUnregister:       (*Host).unregister,
	xlcall.FnAsyncReturn:      (*Host).asyncReturn,
	xlcall.FnEventRegister:    (*Host).eventRegister,
	xlcall.FnDefineBinaryName: (*Host).defineBinaryName,
	xlcall.FnGetBinaryName:    (*Host).getBinaryName,
	xlcall.FnRunningOnCluster: (*Host).runningOnCluster,
	xlcall.FnAlert:            (*Host).alert,
	xlcall.FnMessage:          (*Host).message,
}

// Call implements the host's callback entry point.
func (h *Host) Call(fn xlcall.Function, args []xll.Addr, result xll.Addr) xlcall.Ret {
	h.mu.Lock()
	defer h.mu.Unlock()

	vals := make([]value.Value, len(args))
	for i, a := range args {
		if a == 0 {
			continue
		}
		v, err := h.arena.At(a).Get()
		if err != nil {
			Logger().Warn("undecodable argument",
				zap.Stringer("fn", fn),
				zap.Int("index", i),
				zap.Error(err))
			return h.record(fn, vals, xlcall.RetInvXloper)
		}
		vals[i] = v
	}

	if ret, ok := h.failures[fn]; ok {
		return h.record(fn, vals, ret)
	}
	hd, ok := handlers[fn]
	if !ok {
		return h.record(fn, vals, xlcall.RetInvXlfn)
	}

	out, ret := hd(h, vals, args)
	if ret.OK() && out != nil && result != 0 {
		if err := h.put(result, out); err != nil {
			Logger().Warn("result not written", zap.Stringer("fn", fn), zap.Error(err))
			ret = xlcall.RetFailed
		}
	}
	return h.record(fn, vals, ret)
}

func (h *Host) record(fn xlcall.Function, args []value.Value, ret xlcall.Ret) xlcall.Ret {
	h.calls = append(h.calls, Call{Fn: fn, Args: args, Ret: ret})
	Logger().Debug("callback",
		zap.Stringer("fn", fn),
		zap.Int("argc", len(args)),
		zap.Stringer("ret", ret))
	return ret
}

// put writes v to the record at addr the way the host does: payload in
// host memory, no ownership flags.
func (h *Host) put(addr xll.Addr, v value.Value) error {
	o := h.arena.At(addr)
	if err := o.ConstructWith(v, oper.SelfOwned); err != nil {
		return err
	}
	o.ClearFlags(xlcall.OwnershipMask)
	return nil
}

// Fail makes every later call of fn return ret without touching its
// result. RetSuccess restores normal behavior.
func (h *Host) Fail(fn xlcall.Function, ret xlcall.Ret) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ret.OK() {
		delete(h.failures, fn)
		return
	}
	h.failures[fn] = ret
}

// Calls returns the callbacks received so far.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

// CallsTo returns the callbacks of fn received so far.
func (h *Host) CallsTo(fn xlcall.Function) []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Call
	for _, c := range h.calls {
		if c.Fn == fn {
			out = append(out, c)
		}
	}
	return out
}

// Name returns the add-in path the host reports.
func (h *Host) Name() string { return h.name }

// Space returns the address space shared with the add-in.
func (h *Host) Space() *memory.Space { return h.space }

// SetInterrupt sets the state xlAbort reports.
func (h *Host) SetInterrupt(on bool) {
	h.mu.Lock()
	h.interrupt = on
	h.mu.Unlock()
}

// SetCluster sets the state xlRunningOnCluster reports.
func (h *Host) SetCluster(on bool) {
	h.mu.Lock()
	h.cluster = on
	h.mu.Unlock()
}

// Alerts returns the texts of alert dialogs shown so far.
func (h *Host) Alerts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.alerts...)
}

// StatusText returns the current status bar text.
func (h *Host) StatusText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusText
}

// Events returns the procedures registered per event.
func (h *Host) Events() map[xlcall.Event]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[xlcall.Event]string, len(h.events))
	for k, v := range h.events {
		out[k] = v
	}
	return out
}

// Unloaded reports whether the add-in asked to be unloaded.
func (h *Host) Unloaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unloaded
}
