// Package log provides the logging interface used throughout DataKit.
// Delivering log lines into the host proxy (shared-memory logging) is an
// external collaborator's concern; this package only defines the
// structured-logging surface the engine and node kinds call into, with a
// zap-backed default so the module is usable standalone.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level names accepted by SetLevel.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Logger is the logging interface DataKit's engine and node kinds use.
// Embedders may replace Default with any implementation satisfying this
// interface (for example one that forwards into the host proxy's own
// shared-memory log sink).
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
}

// Default is the package-wide logger. It is a zap SugaredLogger by default;
// replace it before constructing a Filter to redirect engine logs.
var Default Logger = zap.New(
	zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		zapLevel,
	),
	zap.AddCaller(),
	zap.AddCallerSkip(1),
).Sugar()

// SetLevel sets the minimum level the default logger emits. Unrecognized
// levels fall back to info.
func SetLevel(level string) {
	switch level {
	case LevelDebug:
		zapLevel.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		zapLevel.SetLevel(zapcore.InfoLevel)
	case LevelWarn:
		zapLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		zapLevel.SetLevel(zapcore.ErrorLevel)
	default:
		zapLevel.SetLevel(zapcore.InfoLevel)
	}
}

// Debugf logs to DEBUG level on Default.
func Debugf(format string, args ...any) { Default.Debugf(format, args...) }

// Infof logs to INFO level on Default.
func Infof(format string, args ...any) { Default.Infof(format, args...) }

// Warnf logs to WARN level on Default.
func Warnf(format string, args ...any) { Default.Warnf(format, args...) }

// Errorf logs to ERROR level on Default.
func Errorf(format string, args ...any) { Default.Errorf(format, args...) }
