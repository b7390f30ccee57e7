// Package zlog provides the structured leveled logger every core component
// logs through, matching the debug/info/warning/error/fatal severities
// named in the module's log contract.
package zlog

import (
	"os"

	"go.uber.org/zap"
)

// Logger is the structured leveled logger interface the core depends on.
// Satisfied by *zap.SugaredLogger; a test double may substitute any other
// implementation.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Fatalf(template string, args ...interface{})
}

// ExitFunc is called after a Fatalf log line is emitted. Overridable so
// tests can observe a fatal-path invocation without killing the process.
type ExitFunc func(code int)

var defaultExit ExitFunc = os.Exit

// sugaredLogger adapts *zap.SugaredLogger to Logger, routing Fatalf through
// an injectable exit function instead of zap's built-in os.Exit call so
// tests can intercept it.
type sugaredLogger struct {
	*zap.SugaredLogger
	exit ExitFunc
}

func (l *sugaredLogger) Fatalf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)
	l.exit(1)
}

// New builds the default production Logger, backed by zap's production
// encoder config.
func New() Logger {
	return NewWithExit(defaultExit)
}

// NewWithExit builds a Logger whose Fatalf calls exit instead of os.Exit.
func NewWithExit(exit ExitFunc) Logger {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return &sugaredLogger{SugaredLogger: base.Sugar(), exit: exit}
}

// Nop returns a Logger that discards everything and never exits; useful in
// tests that don't want fatal paths to do anything observable.
func Nop() Logger {
	return &sugaredLogger{SugaredLogger: zap.NewNop().Sugar(), exit: func(int) {}}
}
