// Package logger provides structured logging for the index.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with index-specific functionality.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger.
func NewLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "fastfair").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message.
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// TreeLogger returns a logger scoped to a tree operation (insert, search,
// delete, split, range_scan, recover).
func (l *Logger) TreeLogger(operation string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "pmtree").
			Str("operation", operation).
			Logger(),
	}
}

// PoolLogger returns a logger scoped to the PM pool allocator.
func (l *Logger) PoolLogger() *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "pool").
			Logger(),
	}
}

// LogOperation logs a tree operation with structured fields.
func (l *Logger) LogOperation(operation string, duration time.Duration, key int64, err error) {
	event := l.zlog.Debug().
		Str("component", "pmtree").
		Str("operation", operation).
		Dur("duration_ms", duration).
		Int64("key", key)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "pmtree").
			Str("operation", operation).
			Dur("duration_ms", duration).
			Int64("key", key).
			Err(err)
	}

	event.Msg("tree operation completed")
}

// LogSplit logs a FAIR split event.
func (l *Logger) LogSplit(level uint32, splitKey int64, siblingRef uint64) {
	l.zlog.Debug().
		Str("component", "pmtree").
		Str("event", "split").
		Uint32("level", level).
		Int64("split_key", splitKey).
		Uint64("sibling_ref", siblingRef).
		Msg("node split")
}

// LogRecover logs crash-recovery progress.
func (l *Logger) LogRecover(nodesScanned int, duration time.Duration) {
	l.zlog.Info().
		Str("event", "recover").
		Int("nodes_scanned", nodesScanned).
		Dur("duration_ms", duration).
		Msg("pool reopened and scanned")
}

// Global logger instance.
var globalLogger *Logger

// InitGlobalLogger initializes the global logger.
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance.
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
