package addin

import (
	stderrors "errors"
	"strings"
	"testing"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/callback"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/fp12"
	"github.com/wippyai/xll-runtime/hostsim"
	"github.com/wippyai/xll-runtime/internal/invariant"
	"github.com/wippyai/xll-runtime/memory"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/signature"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/multierr"
)

const testName = `C:\addins\sample.xll`

const testManifest = `
name = "Sample Tools"

[[function]]
procedure = "xlAdd"
name = "ADD"
arguments = ["x", "y"]
category = "Math"
attributes = ["thread-safe"]

[[function]]
procedure = "xlGreet"
name = "GREET"
arguments = ["who"]

[[function]]
procedure = "xlLater"
name = "LATER"
arguments = ["x"]

[[function]]
procedure = "xlBoom"
name = "BOOM"
`

// newTestAddIn wires an add-in to a simulated host through a named entry
// point, the way an embedder would.
func newTestAddIn(t *testing.T, manifest string) (*AddIn, *hostsim.Host) {
	t.Helper()
	var m *Manifest
	if manifest != "" {
		var err error
		if m, err = ParseManifest([]byte(manifest)); err != nil {
			t.Fatal(err)
		}
	}
	entry := "test." + t.Name()
	a := New(Config{HeapSize: 1 << 18, StackSize: 1 << 12, EntryPoint: entry, Manifest: m})
	h := hostsim.New(a.Space(), testName)
	callback.Register(entry, h)
	t.Cleanup(func() { callback.Register(entry, nil) })
	h.Attach(a)
	return a, h
}

type sample struct {
	a       *AddIn
	pending []*oper.Handle
}

func (s *sample) export(t *testing.T) {
	t.Helper()
	exports := map[string]any{
		"xlAdd":   func(x, y float64) float64 { return x + y },
		"xlGreet": func(who signature.CString) signature.CString { return "hello, " + who },
		"xlLater": func(x float64, h *oper.Handle) {
			if x < 0 {
				s.pending = append(s.pending, h)
				return
			}
			_ = s.a.AsyncReturn(h, value.Num(x*2))
		},
		"xlBoom": func() float64 { panic("boom") },
	}
	for proc, fn := range exports {
		if err := s.a.Export(proc, fn); err != nil {
			t.Fatal(err)
		}
	}
}

func openSample(t *testing.T) (*sample, *hostsim.Host) {
	t.Helper()
	a, h := newTestAddIn(t, testManifest)
	s := &sample{a: a}
	s.export(t)
	if err := a.AutoOpen(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.AutoClose() })
	return s, h
}

func TestAutoOpenRegistersManifest(t *testing.T) {
	s, h := openSample(t)
	regs := h.Registrations()
	if len(regs) != 4 || s.a.Table().Len() != 4 {
		t.Fatalf("host %d, table %d registrations", len(regs), s.a.Table().Len())
	}
	want := map[string]string{
		"xlAdd":   "BBB$",
		"xlGreet": "CC",
		"xlLater": ">BX",
		"xlBoom":  "B",
	}
	for _, r := range regs {
		if r.TypeText != want[r.Procedure] {
			t.Errorf("%s type text = %q, want %q", r.Procedure, r.TypeText, want[r.Procedure])
		}
		if r.Module != testName {
			t.Errorf("%s module = %q", r.Procedure, r.Module)
		}
	}
	if s.a.Name() != "Sample Tools" {
		t.Errorf("Name() = %q", s.a.Name())
	}
}

func TestEvaluate(t *testing.T) {
	s, h := openSample(t)
	space := s.a.Space()
	before := space.Live()

	tests := []struct {
		name string
		args []value.Value
		want value.Value
	}{
		{"ADD", []value.Value{value.Num(2), value.Num(3)}, value.Num(5)},
		{"ADD", []value.Value{value.Int(2), value.Bool(true)}, value.Num(3)},
		{"ADD", []value.Value{value.NewStr(" 1.5 ")}, value.Num(1.5)},
		{"ADD", []value.Value{value.NewStr("abc"), value.Num(1)}, value.Err(xlcall.ErrValue)},
		{"GREET", []value.Value{value.NewStr("bob")}, value.NewStr("hello, bob")},
		{"GREET", []value.Value{value.Num(4)}, value.NewStr("hello, 4")},
		{"BOOM", nil, value.Err(xlcall.ErrValue)},
	}
	for _, tt := range tests {
		got, err := h.Evaluate(tt.name, tt.args...)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !value.Equal(got, tt.want) {
			t.Errorf("%s(%v) = %s, want %s", tt.name, tt.args, value.Format(got), value.Format(tt.want))
		}
	}
	if space.Live() != before {
		t.Errorf("Live() = %d, want %d", space.Live(), before)
	}

	if _, err := h.Evaluate("ADD", value.Num(1), value.Num(2), value.Num(3)); err == nil {
		t.Error("too many arguments accepted")
	}
}

func TestEvaluateAsync(t *testing.T) {
	s, h := openSample(t)
	before := s.a.Space().Live()

	got, err := h.Evaluate("LATER", value.Num(21))
	if err != nil {
		t.Fatal(err)
	}
	if !value.Equal(got, value.Num(42)) {
		t.Errorf("LATER(21) = %s", value.Format(got))
	}
	if s.a.Space().Live() != before {
		t.Errorf("Live() = %d, want %d", s.a.Space().Live(), before)
	}

	got, err = h.Evaluate("LATER", value.Num(-1))
	if err != nil {
		t.Fatal(err)
	}
	if !value.Equal(got, value.Err(xlcall.ErrGettingData)) {
		t.Errorf("pending LATER = %s", value.Format(got))
	}
	pending := h.Pending()
	if len(pending) != 1 || len(s.pending) != 1 {
		t.Fatalf("pending host %v add-in %d", pending, len(s.pending))
	}
	id := pending[0]
	if s.pending[0].ID() != id {
		t.Errorf("handle id %#x, host id %#x", s.pending[0].ID(), id)
	}

	if err := s.a.AsyncReturn(s.pending[0], value.NewStr("done")); err != nil {
		t.Fatal(err)
	}
	if v, ok := h.AsyncResult(id); !ok || !value.Equal(v, value.NewStr("done")) {
		t.Errorf("AsyncResult = %v, %v", v, ok)
	}
	if s.a.Space().LiveBy(memory.SideSelf) != 0 {
		t.Errorf("self allocations left: %d", s.a.Space().LiveBy(memory.SideSelf))
	}
}

func TestAutoClose(t *testing.T) {
	s, h := openSample(t)
	if _, err := h.Evaluate("LATER", value.Num(-1)); err != nil {
		t.Fatal(err)
	}
	if err := s.a.AutoClose(); err != nil {
		t.Fatal(err)
	}
	if len(h.Registrations()) != 0 || s.a.Table().Len() != 0 {
		t.Errorf("registrations left: host %d table %d", len(h.Registrations()), s.a.Table().Len())
	}
	if n := s.a.Space().LiveBy(memory.SideSelf); n != 0 {
		t.Errorf("self allocations left: %d", n)
	}
	if _, err := h.Evaluate("ADD", value.Num(1)); !stderrors.Is(err, errors.NotFound(errors.PhaseCall, "", "")) {
		t.Errorf("Evaluate after close = %v", err)
	}
}

func TestAutoOpenReportsMissingExports(t *testing.T) {
	a, h := newTestAddIn(t, testManifest)
	if err := a.Export("xlAdd", func(x, y float64) float64 { return x + y }); err != nil {
		t.Fatal(err)
	}
	err := a.AutoOpen()
	if errs := multierr.Errors(err); len(errs) != 3 {
		t.Fatalf("errors = %v", err)
	}
	if !stderrors.Is(err, errors.NotFound(errors.PhaseRegister, "", "")) {
		t.Errorf("err = %v", err)
	}
	if len(h.Registrations()) != 1 {
		t.Errorf("host registrations = %d", len(h.Registrations()))
	}
	_ = a.AutoClose()
}

func TestAutoOpenWithoutManifest(t *testing.T) {
	a, h := newTestAddIn(t, "")
	_ = a.Export("zeta", func() float64 { return 1 })
	_ = a.Export("alpha", func(x float64) float64 { return x })
	if err := a.AutoOpen(); err != nil {
		t.Fatal(err)
	}
	regs := h.Registrations()
	if len(regs) != 2 || regs[0].Procedure != "alpha" || regs[1].Procedure != "zeta" {
		t.Errorf("registrations = %+v", regs)
	}
	_ = a.AutoClose()
}

func TestAutoOpenWithoutEntryPoint(t *testing.T) {
	a := New(Config{HeapSize: 1 << 16, EntryPoint: "test.nobody"})
	if err := a.AutoOpen(); !stderrors.Is(err, errors.NotFound(errors.PhaseCall, "", "")) {
		t.Errorf("err = %v", err)
	}
	if _, err := a.Dispatch("x", nil); !stderrors.Is(err, errors.NotInitialized(errors.PhaseCall, "")) {
		t.Errorf("Dispatch = %v", err)
	}
	if _, err := a.Names(); err == nil {
		t.Error("Names before AutoOpen succeeded")
	}
}

func TestExportRejectsNonFunctions(t *testing.T) {
	a := New(Config{HeapSize: 1 << 16})
	for _, fn := range []any{nil, 3, (func())(nil)} {
		if err := a.Export("x", fn); err == nil {
			t.Errorf("Export(%v) accepted", fn)
		}
	}
	if err := a.Export("", func() {}); err == nil {
		t.Error("empty procedure accepted")
	}
}

func TestDispatchConversions(t *testing.T) {
	a, h := newTestAddIn(t, "")
	exports := map[string]any{
		"ints": func(n int16, m int32, u uint16) int32 { return int32(n) + m + int32(u) },
		"refs": func(p *float64, ok *bool) *float64 {
			if !*ok {
				return nil
			}
			*p *= 10
			return p
		},
		"echo": func(v value.Value) value.Value { return v },
		"double": func(arr *fp12.Array) *fp12.Array {
			for i := range arr.Data {
				arr.Data[i] *= 2
			}
			return arr
		},
		"kind":  func(o *oper.Oper) signature.WString { return signature.WString(o.Type().String()) },
		"refs2": func(r oper.Reference) bool { return r.IsReference() },
	}
	for proc, fn := range exports {
		if err := a.Export(proc, fn); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.AutoOpen(); err != nil {
		t.Fatal(err)
	}

	grid, err := value.NewMulti([][]any{{1.0, 2.0}, {3.0, 4.0}})
	if err != nil {
		t.Fatal(err)
	}
	doubled, _ := value.NewMulti([][]any{{2.0, 4.0}, {6.0, 8.0}})

	tests := []struct {
		name string
		args []value.Value
		want value.Value
	}{
		{"ints", []value.Value{value.Num(1.9), value.Num(-3), value.Int(7)}, value.Num(5)},
		{"ints", []value.Value{value.Num(40000), value.Num(0), value.Num(0)}, value.Err(xlcall.ErrValue)},
		{"ints", []value.Value{value.Num(0), value.Num(0), value.Num(-1)}, value.Err(xlcall.ErrValue)},
		{"refs", []value.Value{value.Num(1.5), value.Bool(true)}, value.Num(15)},
		{"refs", []value.Value{value.Num(1.5), value.Bool(false)}, value.Err(xlcall.ErrNum)},
		{"echo", []value.Value{value.Bool(true)}, value.Bool(true)},
		{"echo", nil, value.Missing{}},
		{"double", []value.Value{grid}, doubled},
		{"double", []value.Value{value.Num(3)}, func() value.Value { m, _ := value.NewMulti([][]any{{6.0}}); return m }()},
		{"kind", []value.Value{value.NewStr("s")}, value.NewStr("xltypeStr")},
		{"refs2", []value.Value{value.SRef{Area: value.Cell(0, 0)}}, value.Bool(true)},
		{"refs2", []value.Value{value.Num(1)}, value.Bool(false)},
	}
	for _, tt := range tests {
		got, err := h.Evaluate(tt.name, tt.args...)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !value.Equal(got, tt.want) {
			t.Errorf("%s(%v) = %s, want %s", tt.name, tt.args, value.Format(got), value.Format(tt.want))
		}
	}
	if n := a.Space().LiveBy(memory.SideSelf); n != 0 {
		t.Errorf("self allocations left: %d", n)
	}
}

func TestAutoFreeIgnoresForeignRecords(t *testing.T) {
	s, _ := openSample(t)
	space := s.a.Space()
	addr, err := space.AllocAs(memory.SideHost, oper.RecordSize, oper.RecordAlign)
	if err != nil {
		t.Fatal(err)
	}
	s.a.AutoFree(addr)
	if side, ok := space.Owner(addr); !ok || side != memory.SideHost {
		t.Error("host record freed by AutoFree")
	}
	space.Free(addr)
	s.a.AutoFree(xll.Addr(0x10))
}

func TestManagerInfo(t *testing.T) {
	a := New(Config{Name: "Long Name"})
	tests := []struct {
		action value.Value
		want   value.Value
	}{
		{value.Num(1), value.NewStr("Long Name")},
		{value.Int(1), value.NewStr("Long Name")},
		{value.Num(2), value.Err(xlcall.ErrValue)},
		{value.Num(1.5), value.Err(xlcall.ErrValue)},
		{value.NewStr("1"), value.Err(xlcall.ErrValue)},
	}
	for _, tt := range tests {
		if got := a.ManagerInfo(tt.action); !value.Equal(got, tt.want) {
			t.Errorf("ManagerInfo(%s) = %s", value.Format(tt.action), value.Format(got))
		}
	}
}

func TestAutoAddAndRemove(t *testing.T) {
	a, h := newTestAddIn(t, testManifest)
	s := &sample{a: a}
	s.export(t)
	if err := a.AutoAdd(); err != nil {
		t.Fatal(err)
	}
	if err := a.AutoRemove(); err != nil {
		t.Fatal(err)
	}
	alerts := h.Alerts()
	if len(alerts) != 2 || !strings.HasSuffix(alerts[0], "added") || !strings.HasSuffix(alerts[1], "removed") {
		t.Errorf("alerts = %q", alerts)
	}
}

func TestFailedAssertionUnloads(t *testing.T) {
	if !invariant.Enabled() {
		t.Skip("assertions compiled out")
	}
	s, h := openSample(t)
	invariant.Fail("test assertion")
	if !h.Unloaded() || len(h.Registrations()) != 0 {
		t.Errorf("unloaded %v, registrations %d", h.Unloaded(), len(h.Registrations()))
	}
	// Only the first failure triggers an unload.
	invariant.Fail("second assertion")
	if calls := h.CallsTo(xlcall.FnUnregister); len(calls) != 1 {
		t.Errorf("xlfUnregister calls = %d", len(calls))
	}
	_ = s.a.AutoClose()
}

func TestNames(t *testing.T) {
	s, _ := openSample(t)
	names, err := s.a.Names()
	if err != nil {
		t.Fatal(err)
	}
	if err := names.Put("state", map[string]int{"runs": 3}); err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := names.Get("state", &got); err != nil || got["runs"] != 3 {
		t.Errorf("Get = %v, %v", got, err)
	}
}
