// Package txlog holds the process-wide logger every threadx package logs
// through, so a host program can wire its own zap.Logger without threading
// one through every constructor.
package txlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the package's logger instance. It uses a no-op logger by
// default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the logger used by every threadx package. Call
// before Init for the change to apply to startup logging too.
func SetLogger(l *zap.Logger) {
	logger = l
}
