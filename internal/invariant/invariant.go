// Package invariant implements debug-time assertions.
//
// Assertions are enabled by default and compiled out with the xllrelease
// build tag. A failed assertion never panics: a process abort would take the
// host application down with it. Instead the failure is logged and handed to
// the installed Handler, which normally asks the host to unload the add-in.
package invariant

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Failure describes a failed assertion.
type Failure struct {
	Message string
	Fields  []zap.Field
}

// Handler reacts to a failed assertion.
type Handler func(Failure)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
	handler    atomic.Pointer[Handler]
	failures   atomic.Int64
)

// Logger returns the package logger. It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the logger used to report failures.
// This must be called before any assertion can fire.
func SetLogger(l *zap.Logger) {
	logger = l
}

// SetHandler installs h and returns the previous handler. A nil h removes it.
func SetHandler(h Handler) Handler {
	var prev *Handler
	if h == nil {
		prev = handler.Swap(nil)
	} else {
		prev = handler.Swap(&h)
	}
	if prev == nil {
		return nil
	}
	return *prev
}

// Enabled reports whether assertions are compiled in.
func Enabled() bool { return enabled }

// Failures returns how many assertions have failed in this process.
func Failures() int64 { return failures.Load() }

// Assert reports a failure when cond is false.
func Assert(cond bool, msg string, fields ...zap.Field) {
	if !enabled || cond {
		return
	}
	Fail(msg, fields...)
}

// Fail reports a failure unconditionally when assertions are enabled.
func Fail(msg string, fields ...zap.Field) {
	if !enabled {
		return
	}
	failures.Add(1)
	Logger().Error("assertion failed: "+msg, fields...)
	if h := handler.Load(); h != nil {
		(*h)(Failure{Message: msg, Fields: fields})
	}
}
