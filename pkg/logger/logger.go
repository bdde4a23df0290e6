package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger interface for logging functionality
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Options controls where and how much a StandardLogger writes
type Options struct {
	Verbose bool
	Quiet   bool   // Suppress console output
	LogFile string // Also append system logs to this file
}

// StandardLogger implements Logger interface
type StandardLogger struct {
	verbose bool
	console *log.Logger
	file    *log.Logger
	closer  io.Closer
}

// NewWithOptions creates a logger honoring quiet mode and an optional log
// file. Console output goes to stderr; stdout is left to the report.
func NewWithOptions(opts Options) (*StandardLogger, error) {
	l := &StandardLogger{verbose: opts.Verbose}

	if !opts.Quiet {
		l.console = log.New(os.Stderr, "", 0)
	}

	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = log.New(f, "", 0)
		l.closer = f
	}

	return l, nil
}

// NewWriter creates a logger writing to w
func NewWriter(w io.Writer, verbose bool) *StandardLogger {
	return &StandardLogger{
		verbose: verbose,
		console: log.New(w, "", 0),
	}
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return &StandardLogger{}
}

// Debug logs debug messages (only in verbose mode)
func (l *StandardLogger) Debug(format string, args ...interface{}) {
	if l.verbose {
		l.logWithLevel("DEBUG", format, args...)
	}
}

// Info logs informational messages
func (l *StandardLogger) Info(format string, args ...interface{}) {
	l.logWithLevel("INFO", format, args...)
}

// Warn logs warning messages
func (l *StandardLogger) Warn(format string, args ...interface{}) {
	l.logWithLevel("WARN", format, args...)
}

// Error logs error messages
func (l *StandardLogger) Error(format string, args ...interface{}) {
	l.logWithLevel("ERROR", format, args...)
}

// Close closes the log file, if any
func (l *StandardLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// logWithLevel logs a message with the specified level
func (l *StandardLogger) logWithLevel(level string, format string, args ...interface{}) {
	// Skip formatting entirely when there is nowhere to write (quiet mode)
	if l.console == nil && l.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05")
	prefix := fmt.Sprintf("[%s] %s: ", timestamp, level)
	message := fmt.Sprintf(format, args...)
	if l.console != nil {
		l.console.Printf("%s%s", prefix, message)
	}
	if l.file != nil {
		l.file.Printf("%s%s", prefix, message)
	}
}
