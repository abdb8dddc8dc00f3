package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"mtm-hub/src/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

var (
	baseOnce  sync.Once
	baseZap   *zap.Logger
	baseLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// base builds the process-wide zap logger shared by every named Logger.
func base() *zap.Logger {
	baseOnce.Do(func() {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stdout),
			baseLevel,
		)
		baseZap = zap.New(core)
	})
	return baseZap
}

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger *zap.SugaredLogger
	config interface{}
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. When config is a *models.MConfig its
// log_level is applied to the shared core.
func NewLogger(config interface{}, name string) *Logger {
	if cfg, ok := config.(*models.MConfig); ok && cfg != nil {
		SetLevel(cfg.LogLevel)
	}
	return &Logger{
		name:   name,
		logger: base().Sugar().With(zap.String("logger", name)),
		config: config,
	}
}

// -----------------------------------------------------------------------------

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{name: "nop", logger: zap.NewNop().Sugar()}
}

// -----------------------------------------------------------------------------

// SetLevel maps DEBUG/INFO/WARNING/ERROR onto the shared zap level.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		baseLevel.SetLevel(zapcore.DebugLevel)
	case "WARNING", "WARN":
		baseLevel.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		baseLevel.SetLevel(zapcore.ErrorLevel)
	default:
		baseLevel.SetLevel(zapcore.InfoLevel)
	}
}

// -----------------------------------------------------------------------------

// Named returns a child logger sharing the same core.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:   name,
		logger: l.logger.With(zap.String("component", name)),
		config: l.config,
	}
}

// -----------------------------------------------------------------------------

// Debug logs verbose diagnostics
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
	_ = l.logger.Sync()
	os.Exit(1)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.logger.Sync()
}
