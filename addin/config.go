package addin

import (
	"github.com/wippyai/xll-runtime/binname"
	"github.com/wippyai/xll-runtime/callback"
	"github.com/wippyai/xll-runtime/internal/invariant"
	"github.com/wippyai/xll-runtime/memory"
	"github.com/wippyai/xll-runtime/oper"
	"github.com/wippyai/xll-runtime/registry"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

// Config configures an add-in.
type Config struct {
	// Name is the long name reported to the add-in manager. Empty means the
	// manifest name.
	Name string
	// PointerSize is the pointer width of the address space: 4 or 8.
	// Zero means 8.
	PointerSize uint32
	// HeapSize and StackSize size the address space. Zero picks the
	// memory package defaults.
	HeapSize  uint32
	StackSize uint32
	// Space, when set, is used instead of creating one from the sizes
	// above.
	Space *memory.Space
	// EntryPoint names the callback registered with callback.Register.
	// Empty means xlcall.EntryPoint.
	EntryPoint string
	// Entry, when set, is used instead of looking up EntryPoint.
	Entry callback.Entry
	// Logger is handed to every package of the runtime. Nil keeps the
	// no-op loggers.
	Logger *zap.Logger
	// Manifest describes the functions AutoOpen registers.
	Manifest *Manifest
}

func (c Config) withDefaults() Config {
	if c.PointerSize == 0 {
		c.PointerSize = 8
	}
	if c.EntryPoint == "" {
		c.EntryPoint = xlcall.EntryPoint
	}
	if c.Name == "" && c.Manifest != nil {
		c.Name = c.Manifest.Name
	}
	return c
}

func (c Config) spaceConfig() memory.Config {
	return memory.Config{PtrSize: c.PointerSize, HeapSize: c.HeapSize, StackSize: c.StackSize}
}

// applyLogger fans the configured logger out to the runtime packages.
func (c Config) applyLogger() {
	l := c.Logger
	if l == nil {
		return
	}
	SetLogger(l.Named("addin"))
	memory.SetLogger(l.Named("memory"))
	oper.SetLogger(l.Named("oper"))
	callback.SetLogger(l.Named("callback"))
	registry.SetLogger(l.Named("registry"))
	binname.SetLogger(l.Named("binname"))
	invariant.SetLogger(l.Named("invariant"))
}
