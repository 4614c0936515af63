package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Package-wide logger shared by every component. Handlers and stores log
// through this instead of carrying a logger instance around; the level is
// set once at startup from the configuration.
var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
})

// SetLevel adjusts the minimum level that will be emitted.
// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
// Unrecognized values leave the current level unchanged.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		logger.SetLevel(log.DebugLevel)
	case "INFO":
		logger.SetLevel(log.InfoLevel)
	case "WARN":
		logger.SetLevel(log.WarnLevel)
	case "ERROR":
		logger.SetLevel(log.ErrorLevel)
	}
}

// SetOutput directs log output to stdout, stderr, or an append-opened
// file at the given path. The file stays open for the process lifetime.
func SetOutput(output string) error {
	switch strings.ToLower(output) {
	case "", "stderr":
		logger.SetOutput(os.Stderr)
	case "stdout":
		logger.SetOutput(os.Stdout)
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		logger.SetOutput(f)
	}
	return nil
}

// SetFormat switches between human-readable text output and JSON.
func SetFormat(format string) {
	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "text":
		logger.SetFormatter(log.TextFormatter)
	}
}

// IsDebug reports whether debug logging is enabled.
func IsDebug() bool {
	return logger.GetLevel() == log.DebugLevel
}

func Debug(format string, v ...any) {
	logger.Debugf(format, v...)
}

func Info(format string, v ...any) {
	logger.Infof(format, v...)
}

func Warn(format string, v ...any) {
	logger.Warnf(format, v...)
}

func Error(format string, v ...any) {
	logger.Errorf(format, v...)
}
