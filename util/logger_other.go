//go:build !linux
// +build !linux

package util

import (
	"io"
	"os"
)

var logWriter io.Writer = os.Stderr

// GetLogWriter returns the current log writer (for use by other packages)
func GetLogWriter() io.Writer {
	return logWriter
}

// SetupLogger is a no-op outside linux; logs go to stderr.
func SetupLogger() {}
