package callback

import (
	"sync"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/xlcall"
)

// Entry is the host's callback entry point. args holds the addresses of
// the argument records, result the address of the record the host writes
// its result to. Either may be null.
type Entry interface {
	Call(fn xlcall.Function, args []xll.Addr, result xll.Addr) xlcall.Ret
}

// EntryFunc adapts a function to Entry.
type EntryFunc func(fn xlcall.Function, args []xll.Addr, result xll.Addr) xlcall.Ret

func (f EntryFunc) Call(fn xlcall.Function, args []xll.Addr, result xll.Addr) xlcall.Ret {
	return f(fn, args, result)
}

var (
	entriesMu sync.RWMutex
	entries   = make(map[string]Entry)
)

// Register makes e resolvable under name. The embedder registers the
// host's exported entry point before the add-in opens. A nil e removes it.
func Register(name string, e Entry) {
	entriesMu.Lock()
	defer entriesMu.Unlock()
	if e == nil {
		delete(entries, name)
		return
	}
	entries[name] = e
}

// Resolve looks up the entry point registered under name.
func Resolve(name string) (Entry, error) {
	entriesMu.RLock()
	defer entriesMu.RUnlock()
	e, ok := entries[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseCall, "entry point", name)
	}
	return e, nil
}
