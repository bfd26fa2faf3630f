// Package logging provides the default applog.Logger backed by the
// standard library logger.
package logging

import (
	"log"

	"github.com/threema-ch/libthreema-go/applog"
)

// LogLogger adapts the standard library's log package to applog.Logger.
type LogLogger struct{}

// NewLogLogger constructs the default logger.
func NewLogLogger() applog.Logger {
	return &LogLogger{}
}

func (l LogLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}
