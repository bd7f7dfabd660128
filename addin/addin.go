package addin

import (
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/binname"
	"github.com/wippyai/xll-runtime/callback"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/internal/abi"
	"github.com/wippyai/xll-runtime/internal/invariant"
	"github.com/wippyai/xll-runtime/memory"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/registry"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// AddIn owns the runtime state of one add-in: its address space, the
// boundary to the host, its registrations and the Go functions it exports.
type AddIn struct {
	cfg      Config
	space    *memory.Space
	table    *registry.Table
	boundary atomic.Pointer[callback.Boundary]

	mu      sync.Mutex
	exports map[string]reflect.Value
	handles map[xll.Addr]*oper.Handle
	open    bool

	prevHandler invariant.Handler
	unloading   atomic.Bool
}

// New creates an add-in and its address space.
func New(cfg Config) *AddIn {
	cfg = cfg.withDefaults()
	cfg.applyLogger()
	space := cfg.Space
	if space == nil {
		space = memory.NewSpace(cfg.spaceConfig())
	}
	return &AddIn{
		cfg:     cfg,
		space:   space,
		table:   registry.NewTable(),
		exports: make(map[string]reflect.Value),
		handles: make(map[xll.Addr]*oper.Handle),
	}
}

// Space returns the address space shared with the host.
func (a *AddIn) Space() *memory.Space { return a.space }

// Table returns the registrations made by AutoOpen.
func (a *AddIn) Table() *registry.Table { return a.table }

// Boundary returns the boundary to the host, or nil before AutoOpen.
func (a *AddIn) Boundary() *callback.Boundary { return a.boundary.Load() }

// Name returns the long name reported to the add-in manager.
func (a *AddIn) Name() string { return a.cfg.Name }

// Names returns a store for workbook binary names.
func (a *AddIn) Names() (*binname.Store, error) {
	b := a.boundary.Load()
	if b == nil {
		return nil, errors.NotInitialized(errors.PhaseCall, "add-in boundary")
	}
	return binname.New(b), nil
}

// Export binds fn to procedure. The function's parameter and result types
// determine the type text it is registered with.
func (a *AddIn) Export(procedure string, fn any) error {
	if procedure == "" {
		return errors.InvalidInput(errors.PhaseRegister, "export needs a procedure name")
	}
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func || rv.IsNil() {
		return errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			GoType(abi.TypeName(fn)).
			Detail("export %s is not a function", procedure).
			Build()
	}
	a.mu.Lock()
	a.exports[procedure] = rv
	a.mu.Unlock()
	return nil
}

func (a *AddIn) connect() (*callback.Boundary, error) {
	if b := a.boundary.Load(); b != nil {
		return b, nil
	}
	var b *callback.Boundary
	if a.cfg.Entry != nil {
		b = callback.New(a.cfg.Entry, a.space)
	} else {
		var err error
		if b, err = callback.Open(a.cfg.EntryPoint, a.space); err != nil {
			return nil, err
		}
	}
	a.boundary.Store(b)
	return b, nil
}

type binding struct {
	spec FunctionSpec
	fn   reflect.Value
}

// bindings pairs the manifest with the exports. Without a manifest every
// export is registered under its own name.
func (a *AddIn) bindings() ([]binding, error) {
	var err error
	var out []binding
	if a.cfg.Manifest == nil {
		for proc, fn := range a.exports {
			out = append(out, binding{spec: FunctionSpec{Procedure: proc}, fn: fn})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].spec.Procedure < out[j].spec.Procedure })
		return out, nil
	}
	for _, fs := range a.cfg.Manifest.Functions {
		fn, ok := a.exports[fs.Procedure]
		if !ok {
			err = multierr.Append(err, errors.NotFound(errors.PhaseRegister, "export", fs.Procedure))
			continue
		}
		out = append(out, binding{spec: fs, fn: fn})
	}
	return out, err
}

// AutoOpen connects to the host and registers the exported functions.
// Every function that can be registered is, and the failures of the others
// are returned together.
func (a *AddIn) AutoOpen() error {
	a.mu.Lock()
	b, err := a.connect()
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if !a.open {
		a.prevHandler = invariant.SetHandler(a.onFailure)
		a.open = true
	}
	bs, errs := a.bindings()
	a.mu.Unlock()

	for _, bd := range bs {
		f, err := bd.spec.Function()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, err := a.table.Register(b, "", bd.fn.Interface(), f); err != nil {
			Logger().Warn("registration failed", zap.String("procedure", f.Procedure), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	Logger().Info("add-in opened",
		zap.String("name", a.cfg.Name),
		zap.Int("registered", a.table.Len()),
		zap.Int("failed", len(multierr.Errors(errs))))
	return errs
}

// AutoClose withdraws every registration and drops pending asynchronous
// handles.
func (a *AddIn) AutoClose() error {
	b := a.boundary.Load()
	if b == nil {
		return nil
	}
	err := a.table.UnregisterAll(b)

	a.mu.Lock()
	for id, h := range a.handles {
		b.Arena().Delete(&h.Oper)
		delete(a.handles, id)
	}
	if a.open {
		invariant.SetHandler(a.prevHandler)
		a.prevHandler = nil
		a.open = false
	}
	a.mu.Unlock()
	a.unloading.Store(false)

	Logger().Info("add-in closed", zap.String("name", a.cfg.Name), zap.Error(err))
	return err
}

// AutoAdd runs when the user adds the add-in through the add-in manager.
func (a *AddIn) AutoAdd() error {
	if err := a.AutoOpen(); err != nil {
		return err
	}
	return a.boundary.Load().MessageBox(a.cfg.Name+" added", callback.AlertInformation)
}

// AutoRemove runs when the user removes the add-in through the add-in
// manager.
func (a *AddIn) AutoRemove() error {
	b := a.boundary.Load()
	err := a.AutoClose()
	if b != nil {
		err = multierr.Append(err, b.MessageBox(a.cfg.Name+" removed", callback.AlertInformation))
	}
	return err
}

// AutoFree destroys a result record the host hands back because it carries
// the self-free flag.
func (a *AddIn) AutoFree(result xll.Addr) {
	b := a.boundary.Load()
	if b == nil {
		return
	}
	if side, ok := a.space.Owner(result); !ok || side != memory.SideSelf {
		Logger().Warn("auto-free of a record the add-in does not own", zap.Uint64("addr", uint64(result)))
		return
	}
	b.Arena().Delete(b.Arena().At(result))
}

// ManagerInfo answers the add-in manager. Action 1 asks for the long name;
// every other action yields #VALUE!.
func (a *AddIn) ManagerInfo(action value.Value) value.Value {
	var n any
	switch x := action.(type) {
	case value.Num:
		n = float64(x)
	case value.Int:
		n = int32(x)
	}
	if act, ok := abi.CoerceToInt32(n); ok && act == 1 {
		return value.NewStr(a.cfg.Name)
	}
	return value.Err(xlcall.ErrValue)
}

// AsyncReturn completes the asynchronous call h belongs to.
func (a *AddIn) AsyncReturn(h *oper.Handle, v value.Value) error {
	b := a.boundary.Load()
	if b == nil {
		return errors.NotInitialized(errors.PhaseCall, "add-in boundary")
	}
	id := h.ID()
	ok, err := b.AsyncReturn(h, v)

	a.mu.Lock()
	if own, tracked := a.handles[id]; tracked {
		delete(a.handles, id)
		b.Arena().Delete(&own.Oper)
	}
	a.mu.Unlock()

	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.PhaseCall, errors.KindNotFound).
			Value(id).
			Detail("host has no pending call 0x%x", uint64(id)).
			Build()
	}
	return nil
}

// onFailure asks the host to unload the add-in after a failed assertion.
func (a *AddIn) onFailure(f invariant.Failure) {
	if a.prevHandler != nil {
		a.prevHandler(f)
	}
	if !a.unloading.CompareAndSwap(false, true) {
		return
	}
	b := a.boundary.Load()
	if b == nil {
		return
	}
	ok, err := b.Unload()
	Logger().Error("unloading after failed assertion",
		zap.String("assertion", f.Message),
		zap.Bool("unloaded", ok),
		zap.Error(err))
}
