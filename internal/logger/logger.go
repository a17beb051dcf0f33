// Package logger builds the process wide slog.Logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/anubad/internal/env"
)

type options struct {
	out        io.Writer
	logFile    string
	level      slog.Level
	logToFile  bool
	maxSizeMB  int
	maxBackups int
}

// Option configures the logger.
type Option func(*options)

// WithLogToFile enables writing a rotated copy of every record to a file.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the path of the rotated log file.
func WithLogFile(path string) Option {
	return func(o *options) {
		o.logFile = path
	}
}

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithWriter replaces the console writer (stderr by default).
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// New creates a logger for the given environment.
// Development gets colored tint output, every other environment gets JSON.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := &options{
		out:        os.Stderr,
		logFile:    "logs/anubad.log",
		level:      slog.LevelInfo,
		maxSizeMB:  10,
		maxBackups: 3,
	}
	for _, opt := range opts {
		opt(o)
	}

	if environment == env.Development && o.level == slog.LevelInfo {
		o.level = slog.LevelDebug
	}

	var console slog.Handler
	if environment == env.Development {
		console = tint.NewHandler(o.out, &tint.Options{
			Level:      o.level,
			TimeFormat: time.Kitchen,
		})
	} else {
		console = slog.NewJSONHandler(o.out, &slog.HandlerOptions{Level: o.level})
	}

	if !o.logToFile || o.logFile == "" {
		return slog.New(console)
	}

	file := slog.NewJSONHandler(&lumberjack.Logger{
		Filename:   o.logFile,
		MaxSize:    o.maxSizeMB,
		MaxBackups: o.maxBackups,
		Compress:   true,
	}, &slog.HandlerOptions{Level: o.level})

	return slog.New(&fanout{handlers: []slog.Handler{console, file}})
}
