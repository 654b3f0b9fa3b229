// Package logging mirrors the call signature of the teacher
// repository's shared/logger package — logger.Debug(msg, logger.Ctx{...})
// — backed by logrus rather than a hand-rolled writer, since logrus is
// already a direct dependency of the teacher's go.mod.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Ctx is a bag of structured fields attached to a log line, named to
// match the teacher's logger.Ctx{"remote": address, "err": err} call
// sites (see lxd/cluster/heartbeat.go).
type Ctx = map[string]any

// Logger adapts a *logrus.Logger to the narrow raft.Logger interface,
// tagging every line with a fixed set of base fields (typically the
// node id) so log lines from a multi-node in-memory test run can be
// told apart.
type Logger struct {
	backend *logrus.Logger
	base    Ctx
}

// New returns a Logger writing through backend, with every line
// additionally tagged with base.
func New(backend *logrus.Logger, base Ctx) *Logger {
	if backend == nil {
		backend = logrus.StandardLogger()
	}

	return &Logger{backend: backend, base: base}
}

// With returns a copy of l with additional base fields merged in,
// useful for deriving a per-component logger (e.g. the proxy
// supervisor) from the driver's own.
func (l *Logger) With(ctx Ctx) *Logger {
	merged := make(Ctx, len(l.base)+len(ctx))
	for k, v := range l.base {
		merged[k] = v
	}

	for k, v := range ctx {
		merged[k] = v
	}

	return &Logger{backend: l.backend, base: merged}
}

func (l *Logger) entry(ctx Ctx) *logrus.Entry {
	fields := make(logrus.Fields, len(l.base)+len(ctx))
	for k, v := range l.base {
		fields[k] = v
	}

	for k, v := range ctx {
		fields[k] = v
	}

	return l.backend.WithFields(fields)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, ctx Ctx) { l.entry(ctx).Debug(msg) }

// Info logs at info level.
func (l *Logger) Info(msg string, ctx Ctx) { l.entry(ctx).Info(msg) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, ctx Ctx) { l.entry(ctx).Warn(msg) }

// Error logs at error level.
func (l *Logger) Error(msg string, ctx Ctx) { l.entry(ctx).Error(msg) }

var std = New(logrus.StandardLogger(), nil)

// Default returns the package-level logger, for call sites that don't
// carry their own injected Logger (such as the proxy factory wiring in
// cmd/raftd), matching the teacher's pervasive use of
// package-level logger.Xxx calls rather than an injected instance
// everywhere.
func Default() *Logger { return std }

// Debug logs through the default logger.
func Debug(msg string, ctx Ctx) { std.Debug(msg, ctx) }

// Info logs through the default logger.
func Info(msg string, ctx Ctx) { std.Info(msg, ctx) }

// Warn logs through the default logger.
func Warn(msg string, ctx Ctx) { std.Warn(msg, ctx) }

// Error logs through the default logger.
func Error(msg string, ctx Ctx) { std.Error(msg, ctx) }

// Errorf logs a formatted message at error level with no structured
// context, matching call sites like logger.Errorf("...: %+v", x).
func Errorf(format string, args ...any) { std.backend.Errorf(format, args...) }
