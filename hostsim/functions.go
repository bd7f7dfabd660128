package hostsim

import (
	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/memory"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

func arg(args []value.Value, i int) value.Value {
	if i < len(args) && args[i] != nil {
		return args[i]
	}
	return value.Missing{}
}

func argStr(args []value.Value, i int) (string, bool) {
	s, ok := arg(args, i).(value.Str)
	return s.String(), ok
}

// free releases host payloads handed back with xlFree. A record whose
// payload is not live host memory fails the whole call.
func (h *Host) free(_ []value.Value, addrs []xll.Addr) (value.Value, xlcall.Ret) {
	l := h.arena.Layout()
	for _, a := range addrs {
		if a == 0 {
			continue
		}
		o := h.arena.At(a)
		if !o.Type().NeedsRelease() {
			continue
		}
		ptr, err := h.space.ReadPtr(a + xll.Addr(l.Ptr))
		if err != nil {
			return nil, xlcall.RetInvXloper
		}
		if ptr == 0 {
			continue
		}
		if side, ok := h.space.Owner(ptr); !ok || side != memory.SideHost {
			Logger().Warn("xlFree of memory the host does not own",
				zap.Uint64("record", uint64(a)),
				zap.Uint64("payload", uint64(ptr)),
				zap.Bool("live", ok))
			return nil, xlcall.RetFailed
		}
		o.SetProvenance(oper.SelfOwned)
		o.Destroy()
	}
	return nil, xlcall.RetSuccess
}

func (h *Host) stack(_ []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	limit, base := h.space.StackBounds()
	free := int64(base-limit) - int64(h.space.StackUsed())
	if free > 1<<31-1 {
		free = 1<<31 - 1
	}
	return value.Int(free), xlcall.RetSuccess
}

func (h *Host) getName(_ []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	return value.NewStr(h.name), xlcall.RetSuccess
}

func (h *Host) getHwnd(_ []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	return value.Int(h.hwnd), xlcall.RetSuccess
}

// abort reports the pending interrupt. A FALSE argument clears it.
func (h *Host) abort(args []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	pending := h.interrupt
	if b, ok := arg(args, 0).(value.Bool); ok && !bool(b) {
		h.interrupt = false
	}
	return value.Bool(pending), xlcall.RetSuccess
}

func (h *Host) asyncReturn(args []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	bd, ok := arg(args, 0).(value.BigData)
	if !ok {
		return nil, xlcall.RetInvXloper
	}
	if !h.pending[bd.Handle] {
		return value.Bool(false), xlcall.RetSuccess
	}
	delete(h.pending, bd.Handle)
	h.asyncResult[bd.Handle] = value.Clone(arg(args, 1))
	return value.Bool(true), xlcall.RetSuccess
}

func (h *Host) eventRegister(args []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	proc, ok := argStr(args, 0)
	ev, isInt := arg(args, 1).(value.Int)
	if !ok || !isInt {
		return nil, xlcall.RetInvXloper
	}
	switch xlcall.Event(ev) {
	case xlcall.EventCalculationEnded, xlcall.EventCalculationCanceled:
	default:
		return value.Bool(false), xlcall.RetSuccess
	}
	h.events[xlcall.Event(ev)] = proc
	return value.Bool(true), xlcall.RetSuccess
}

// defineBinaryName copies the bytes a BigData argument points to. A
// missing argument deletes the name.
func (h *Host) defineBinaryName(args []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	name, ok := argStr(args, 0)
	if !ok || name == "" {
		return nil, xlcall.RetInvXloper
	}
	h.dropBinaryAddr(name)

	switch data := arg(args, 1).(type) {
	case value.Missing, value.Nil:
		delete(h.binaryNames, name)
	case value.BigData:
		if data.Size < 0 {
			return nil, xlcall.RetInvXloper
		}
		var blob []byte
		if data.Size > 0 {
			b, err := h.space.Read(data.Handle, uint32(data.Size))
			if err != nil {
				return nil, xlcall.RetInvXloper
			}
			blob = b
		}
		h.binaryNames[name] = blob
	default:
		return nil, xlcall.RetInvXloper
	}
	return value.Bool(true), xlcall.RetSuccess
}

// getBinaryName returns a host-owned copy of the named data. The copy
// stays valid until the name is redefined.
func (h *Host) getBinaryName(args []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	name, ok := argStr(args, 0)
	if !ok {
		return nil, xlcall.RetInvXloper
	}
	blob, ok := h.binaryNames[name]
	if !ok {
		return nil, xlcall.RetFailed
	}
	h.dropBinaryAddr(name)

	var handle xll.Addr
	if len(blob) > 0 {
		addr, err := h.space.AllocAs(memory.SideHost, uint32(len(blob)), 8)
		if err != nil {
			return nil, xlcall.RetFailed
		}
		if err := h.space.Write(addr, blob); err != nil {
			h.space.Free(addr)
			return nil, xlcall.RetFailed
		}
		h.binaryAddrs[name] = addr
		handle = addr
	}
	return value.BigData{Handle: handle, Size: int32(len(blob))}, xlcall.RetSuccess
}

func (h *Host) dropBinaryAddr(name string) {
	if addr, ok := h.binaryAddrs[name]; ok {
		h.space.Free(addr)
		delete(h.binaryAddrs, name)
	}
}

// BinaryName returns the bytes stored under name.
func (h *Host) BinaryName(name string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.binaryNames[name]
	return append([]byte(nil), b...), ok
}

func (h *Host) runningOnCluster(_ []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	return value.Bool(h.cluster), xlcall.RetSuccess
}

func (h *Host) alert(args []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	text, ok := argStr(args, 0)
	if !ok {
		return nil, xlcall.RetInvXloper
	}
	h.alerts = append(h.alerts, text)
	return value.Bool(true), xlcall.RetSuccess
}

// message sets the status bar text. FALSE restores the default.
func (h *Host) message(args []value.Value, _ []xll.Addr) (value.Value, xlcall.Ret) {
	show, ok := arg(args, 0).(value.Bool)
	if !ok {
		return nil, xlcall.RetInvXloper
	}
	h.statusText = ""
	if show {
		text, _ := argStr(args, 1)
		h.statusText = text
	}
	return value.Bool(true), xlcall.RetSuccess
}

// ReleaseBinaryNames frees host copies handed out by xlGetBinaryName.
func (h *Host) ReleaseBinaryNames() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name := range h.binaryAddrs {
		h.dropBinaryAddr(name)
	}
}
