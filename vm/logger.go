package vm

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the vm package's logger instance. It uses a no-op logger
// by default; embedders that want call/return tracing can replace it with
// SetLogger.
//
// Grounded on engine/logger.go's Logger() singleton (sync.Once + NewNop
// default).
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs l as the package logger. Call before running an
// Executor whose TraceCallReturn flag is enabled; InstrProfiling only counts
// opcodes and does not log.
func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	logger = l
}

func zapFields(function string, ip int) []zap.Field {
	return []zap.Field{zap.String("function", function), zap.Int("ip", ip)}
}
