// Copyright 2025 Covenant Protocol
//
// Package logging provides structured logging for kernel services.
// It wraps log/slog with level, format, and output configuration.

package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Config represents logging configuration
type Config struct {
	Level     string `json:"level" yaml:"level"`           // "debug", "info", "warn", "error"
	Format    string `json:"format" yaml:"format"`         // "json" or "text"
	Output    string `json:"output" yaml:"output"`         // "stdout", "stderr", or a file path
	AddSource bool   `json:"add_source" yaml:"add_source"` // include caller positions
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "text",
		Output: "stdout",
	}
}

// Logger wraps slog.Logger with kernel-specific construction
type Logger struct {
	*slog.Logger
	config *Config
}

// NewLogger creates a logger from the given configuration
func NewLogger(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer
	switch config.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		output = f
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(config.Level),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{Logger: slog.New(handler), config: config}, nil
}

// Component returns a child logger tagged with a component name
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.With("component", name), config: l.config}
}

// Std returns a standard-library logger with a bracketed prefix writing
// to the standard log package's output, for services that take a
// *log.Logger.
func Std(prefix string) *log.Logger {
	return log.New(log.Writer(), "["+prefix+"] ", log.LstdFlags)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
