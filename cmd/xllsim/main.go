package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wippyai/xll-runtime/addin"
	"github.com/wippyai/xll-runtime/callback"
	"github.com/wippyai/xll-runtime/hostsim"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

func main() {
	var (
		manifestFile = flag.String("manifest", "", "Path to add-in manifest (TOML); the built-in sample when empty")
		hostName     = flag.String("name", `C:\addins\sample.xll`, "Add-in path the host reports")
		ptrSize      = flag.Uint("ptr", 8, "Pointer size of the simulated process (4 or 8)")
		calls        = flag.String("call", "", "Formulas to evaluate, separated by ';' (e.g. \"ADD 2 3;GREET bob\")")
		list         = flag.Bool("list", false, "List registrations and exit")
		verbose      = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *ptrSize != 4 && *ptrSize != 8 {
		fmt.Fprintln(os.Stderr, "Usage: xllsim [-manifest addin.toml] [-ptr 4|8] [-call \"NAME arg...;...\"] [-list] [-v]")
		os.Exit(1)
	}

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	if err := run(logger, *manifestFile, *hostName, uint32(*ptrSize), *calls, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

func run(logger *zap.Logger, manifestFile, hostName string, ptrSize uint32, calls string, listOnly bool) error {
	manifest, err := loadManifest(manifestFile)
	if err != nil {
		return err
	}

	a := addin.New(addin.Config{
		PointerSize: ptrSize,
		Logger:      logger,
		Manifest:    manifest,
	})
	host := hostsim.New(a.Space(), hostName)
	hostsim.SetLogger(logger.Named("hostsim"))
	callback.Register(xlcall.EntryPoint, host)
	defer callback.Register(xlcall.EntryPoint, nil)
	host.Attach(a)

	s := &sample{addin: a}
	if err := s.export(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := a.AutoOpen(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	defer func() {
		if err := a.AutoClose(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: close: %v\n", err)
		}
	}()

	fmt.Printf("Add-in: %s (%s)\n", a.Name(), host.Name())
	fmt.Printf("Pointer size: %d\n", a.Space().PtrSize())
	fmt.Printf("\nRegistered functions:\n")
	for _, r := range host.Registrations() {
		fmt.Printf("  %-8s %-10s %-8s id=%g\n", r.FunctionText, r.Procedure, r.TypeText, r.ID)
	}
	if listOnly {
		return nil
	}

	if calls == "" {
		calls = defaultCalls
	}
	fmt.Printf("\nEvaluating:\n")
	for _, formula := range strings.Split(calls, ";") {
		fields := strings.Fields(formula)
		if len(fields) == 0 {
			continue
		}
		args := make([]value.Value, len(fields)-1)
		for i, f := range fields[1:] {
			args[i] = parseArg(f)
		}
		result, err := host.Evaluate(fields[0], args...)
		if err != nil {
			fmt.Printf("  %s: %v\n", strings.TrimSpace(formula), err)
			continue
		}
		fmt.Printf("  %s = %s\n", strings.TrimSpace(formula), value.Format(result))
	}

	if n := s.complete(); n > 0 {
		fmt.Printf("\nCompleted %d asynchronous call(s)\n", n)
	}
	fmt.Printf("\nLive allocations: %d\n", a.Space().Live())
	return nil
}

func loadManifest(path string) (*addin.Manifest, error) {
	if path == "" {
		return addin.ParseManifest([]byte(sampleManifest))
	}
	return addin.LoadManifest(path)
}

// parseArg reads a formula argument: numbers, TRUE/FALSE, and text.
func parseArg(s string) value.Value {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Num(f)
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		return value.Bool(true)
	case "FALSE":
		return value.Bool(false)
	}
	return value.NewStr(strings.Trim(s, `"`))
}
