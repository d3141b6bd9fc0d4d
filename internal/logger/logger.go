// Package logger provides the console and log-file output used by every
// stackup command. Console lines are colored with fatih/color; the optional
// log file receives JSON records through zap. Both sinks pass through the
// secret redactor.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/protocollar/stackup/internal/jsonout"
)

// Options configures Init.
type Options struct {
	Debug   bool
	LogFile string
	RunID   string
}

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgHiMagenta)
	errorColor   = color.New(color.FgRed)
	debugColor   = color.New(color.FgHiBlack)
)

var (
	debugEnabled bool
	file         = zap.NewNop().Sugar()
)

// Init configures debug output and the log file. The returned function
// flushes and closes the log file.
func Init(opts Options) (func(), error) {
	debugEnabled = opts.Debug
	if opts.LogFile == "" {
		file = zap.NewNop().Sugar()
		return func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(f), level)
	z := zap.New(core)
	if opts.RunID != "" {
		z = z.With(zap.String("run_id", opts.RunID))
	}
	file = z.Sugar()

	return func() {
		_ = z.Sync()
		_ = f.Close()
		file = zap.NewNop().Sugar()
	}, nil
}

func out() io.Writer {
	return jsonout.MsgOut()
}

func emit(c *color.Color, level zapcore.Level, format string, a ...any) {
	msg := Redact(fmt.Sprintf(format, a...))
	c.Fprintln(out(), msg)
	record(level, msg)
}

func record(level zapcore.Level, msg string, kv ...any) {
	switch level {
	case zapcore.DebugLevel:
		file.Debugw(msg, kv...)
	case zapcore.WarnLevel:
		file.Warnw(msg, kv...)
	case zapcore.ErrorLevel:
		file.Errorw(msg, kv...)
	default:
		file.Infow(msg, kv...)
	}
}

// Info prints a progress message.
func Info(format string, a ...any) { emit(infoColor, zapcore.InfoLevel, format, a...) }

// Success prints a completed-step message.
func Success(format string, a ...any) { emit(successColor, zapcore.InfoLevel, format, a...) }

// Warn prints a warning.
func Warn(format string, a ...any) { emit(warnColor, zapcore.WarnLevel, format, a...) }

// Error prints an error.
func Error(format string, a ...any) { emit(errorColor, zapcore.ErrorLevel, format, a...) }

// Debug prints only when debug output is enabled; it is always recorded in
// the log file at debug level.
func Debug(format string, a ...any) {
	if debugEnabled {
		emit(debugColor, zapcore.DebugLevel, format, a...)
		return
	}
	record(zapcore.DebugLevel, Redact(fmt.Sprintf(format, a...)))
}

// Event writes a structured record to the log file only. String values are
// redacted.
func Event(msg string, kv ...any) {
	for i, v := range kv {
		if s, ok := v.(string); ok {
			kv[i] = Redact(s)
		}
	}
	record(zapcore.InfoLevel, msg, kv...)
}
