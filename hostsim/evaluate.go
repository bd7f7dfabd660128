package hostsim

import (
	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/memory"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/signature"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

// Exports is the add-in side of a worksheet call.
type Exports interface {
	// Dispatch runs the exported procedure with the argument records at
	// args and returns the address of its result record, or null for
	// functions without a result.
	Dispatch(procedure string, args []xll.Addr) (xll.Addr, error)
	// AutoFree releases a result record marked self-owned by the add-in.
	AutoFree(result xll.Addr)
}

// Attach connects the add-in's exports so registered functions can be
// evaluated.
func (h *Host) Attach(x Exports) {
	h.mu.Lock()
	h.exports = x
	h.mu.Unlock()
}

// Evaluate calls a registered function the way a cell formula does. name
// is the function text or procedure. Arguments are placed in host records;
// a handle parameter receives a fresh asynchronous handle. The result is
// copied out and handed back through AutoFree when the add-in marked it
// self-owned. An asynchronous function that has not returned yet
// evaluates to #GETTING_DATA.
func (h *Host) Evaluate(name string, args ...value.Value) (value.Value, error) {
	h.mu.Lock()
	r, ok := h.lookup(name)
	x := h.exports
	if !ok {
		h.mu.Unlock()
		return nil, errors.NotFound(errors.PhaseCall, "function", name)
	}
	if x == nil {
		h.mu.Unlock()
		return nil, errors.NotInitialized(errors.PhaseCall, "add-in exports")
	}
	params := r.Signature.Params()
	if len(args) > len(params) {
		h.mu.Unlock()
		return nil, errors.InvalidInput(errors.PhaseCall, "too many arguments for "+name)
	}

	var async xll.Addr
	addrs := make([]xll.Addr, len(params))
	var err error
	for i, code := range params {
		var v value.Value = value.Missing{}
		if code == signature.CodeHandle {
			async = h.nextAsync
			h.nextAsync++
			h.pending[async] = true
			v = value.BigData{Handle: async}
		} else if i < len(args) && args[i] != nil {
			v = args[i]
		}
		if addrs[i], err = h.newRecord(v); err != nil {
			break
		}
	}
	procedure := r.Procedure
	h.mu.Unlock()

	defer h.releaseRecords(addrs)
	if err != nil {
		return nil, err
	}

	res, err := x.Dispatch(procedure, addrs)
	if err != nil {
		return nil, err
	}

	var out value.Value
	if res != 0 {
		rec := h.arena.At(res)
		out, err = rec.Get()
		if rec.Flags()&xlcall.BitDLLFree != 0 {
			x.AutoFree(res)
		}
		if err != nil {
			return nil, err
		}
	}

	if async != 0 {
		h.mu.Lock()
		defer h.mu.Unlock()
		if v, done := h.asyncResult[async]; done {
			delete(h.asyncResult, async)
			return v, nil
		}
		return value.Err(xlcall.ErrGettingData), nil
	}
	if out == nil {
		out = value.Nil{}
	}
	return out, nil
}

// AsyncResult returns the value an asynchronous call completed with and
// forgets it.
func (h *Host) AsyncResult(id xll.Addr) (value.Value, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.asyncResult[id]
	delete(h.asyncResult, id)
	return v, ok
}

// Pending returns the asynchronous handles that have not been completed.
func (h *Host) Pending() []xll.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]xll.Addr, 0, len(h.pending))
	for id := range h.pending {
		out = append(out, id)
	}
	return out
}

func (h *Host) newRecord(v value.Value) (xll.Addr, error) {
	addr, err := h.space.AllocAs(memory.SideHost, oper.RecordSize, oper.RecordAlign)
	if err != nil {
		return 0, err
	}
	if err := h.put(addr, v); err != nil {
		h.space.Free(addr)
		return 0, err
	}
	return addr, nil
}

func (h *Host) releaseRecords(addrs []xll.Addr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, a := range addrs {
		if a == 0 {
			continue
		}
		o := h.arena.At(a)
		o.SetProvenance(oper.SelfOwned)
		o.Destroy()
		h.space.Free(a)
	}
	Logger().Debug("released argument records", zap.Int("count", len(addrs)))
}
