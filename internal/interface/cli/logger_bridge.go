package cli

import (
	"strings"

	"github.com/hatsuki-dev/vispanel/internal/app"
	"github.com/hatsuki-dev/vispanel/internal/infra/fs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// loggerBridge adapts the CLI logger to the app.Logger interface.
type loggerBridge struct {
	cliLogger *Logger
}

func (b *loggerBridge) Debug(format string, args ...interface{}) {
	b.cliLogger.Debug(format, args...)
}

func (b *loggerBridge) Info(format string, args ...interface{}) {
	b.cliLogger.Info(format, args...)
}

func (b *loggerBridge) Warn(format string, args ...interface{}) {
	b.cliLogger.Warn(format, args...)
}

func (b *loggerBridge) Error(format string, args ...interface{}) {
	b.cliLogger.Error(format, args...)
}

// InitializeLoggers sets up loggers for all CLI-facing layers.
func InitializeLoggers(logger *Logger) {
	appLogger := &loggerBridge{cliLogger: logger}
	app.SetLogger(appLogger)
	fs.SetLogger(appLogger)
}

// NewEngineLogger builds the structured zap.Logger used by the engine,
// HTTP surface, SSE broker, render gate and subprocess adapters. It shares
// the same stderrLevel threshold as the CLI's own Logger for debug, info,
// warn and error. Any other value falls back to info here, while the CLI
// Logger maps "fatal" to error and everything else to warn.
func NewEngineLogger(stderrLevel string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapLevelFromString(stderrLevel))
	return cfg.Build()
}

func zapLevelFromString(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
