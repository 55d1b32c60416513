// Package logger provides the process-wide run log.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	globalLogger *log.Logger
	logFile      *os.File
	verbose      bool
	stderr       io.Writer = os.Stderr
	mu           sync.Mutex
)

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	rebuild()

	return nil
}

// SetVerbose mirrors log lines to stderr when on.
func SetVerbose(on bool) {
	mu.Lock()
	defer mu.Unlock()

	verbose = on
	rebuild()
}

// rebuild recreates the logger for the current sinks. Caller holds mu.
func rebuild() {
	var sinks []io.Writer
	if logFile != nil {
		sinks = append(sinks, logFile)
	}
	if verbose {
		sinks = append(sinks, stderr)
	}
	if len(sinks) == 0 {
		globalLogger = nil
		return
	}
	globalLogger = log.New(io.MultiWriter(sinks...), "", log.Ltime|log.Lmicroseconds)
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	rebuild()
}

func printf(level, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Printf("["+level+"] "+format, v...)
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) { printf("INFO", format, v...) }

// Debug logs a debug message.
func Debug(format string, v ...interface{}) { printf("DEBUG", format, v...) }

// Error logs an error message.
func Error(format string, v ...interface{}) { printf("ERROR", format, v...) }

// Warn logs a warning message.
func Warn(format string, v ...interface{}) { printf("WARN", format, v...) }

// GetWriter returns the underlying writer for use by drivers.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
