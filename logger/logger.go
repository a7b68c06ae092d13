// Package logger wraps a process-wide zap sugared logger.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once sync.Once
	log  *zap.SugaredLogger
)

// Init configures the global logger. Pass debug=true for development
// output with human-readable timestamps.
func Init(debug bool) {
	once.Do(func() {
		var base *zap.Logger
		var err error
		if debug {
			base, err = zap.NewDevelopment()
		} else {
			base, err = zap.NewProduction()
		}
		if err != nil {
			base = zap.NewNop()
		}
		log = base.Sugar()
	})
}

// Get returns the global sugared logger, initializing a production logger
// if Init was never called.
func Get() *zap.SugaredLogger {
	if log == nil {
		Init(false)
	}
	return log
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
