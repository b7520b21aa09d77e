// Package tlog wraps the standard library logger with the bracketed
// severity tags used throughout this codebase: [INFO], [FAIL], [ERROR].
package tlog

import (
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags)

// Info logs an informational line, e.g. a state transition or a received
// message.
func Info(format string, args ...interface{}) {
	std.Printf("[INFO]\t"+format, args...)
}

// Fail logs a failed step, e.g. a peer session closing on an error or a
// subcommand run ending in one.
func Fail(format string, args ...interface{}) {
	std.Printf("[FAIL]\t"+format, args...)
}

// Error logs a failure that aborts the current operation.
func Error(format string, args ...interface{}) {
	std.Printf("[ERROR]\t"+format, args...)
}
