package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"quorum/pkg/errors"
)

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

// Logger wraps zap.SugaredLogger with optional error tracking
type Logger struct {
	*zap.SugaredLogger
	errorTracker errors.Tracker
}

// Init initializes the global logger
func Init(level string, env string) error {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = &Logger{SugaredLogger: logger.Sugar()}
	return nil
}

// SetErrorTracker sets the error tracker for automatic error reporting
func SetErrorTracker(tracker errors.Tracker) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		globalLogger.errorTracker = tracker
	}
}

// New wraps an existing zap core. Used by tests to observe log output.
func New(core zapcore.Core, tracker errors.Tracker) *Logger {
	return &Logger{SugaredLogger: zap.New(core).Sugar(), errorTracker: tracker}
}

// Get returns the global logger
func Get() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		// Fallback to basic logger
		logger, _ := zap.NewDevelopment()
		globalLogger = &Logger{SugaredLogger: logger.Sugar()}
	}
	return globalLogger
}

// Component returns a child of the global logger tagged with a component name
func Component(name string) *Logger {
	return Get().With("component", name)
}

// With creates a child logger with additional fields
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		errorTracker:  l.errorTracker,
	}
}

// ForContext adds the workflow run attached to ctx, if any
func (l *Logger) ForContext(ctx context.Context) *Logger {
	run, ok := errors.RunFromContext(ctx)
	if !ok {
		return l
	}
	return l.With("run_id", run.ID, "symbol", run.Symbol)
}

// Error logs an error and optionally sends it to error tracker
func (l *Logger) Error(args ...interface{}) {
	l.SugaredLogger.Error(args...)

	if l.errorTracker != nil {
		err := errors.Wrapf(errors.ErrInternal, "%v", args)
		l.errorTracker.CaptureError(context.Background(), err, map[string]string{
			"component": "logger",
		})
	}
}

// Errorf logs a formatted error and optionally sends it to error tracker
func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)

	if l.errorTracker != nil {
		err := fmt.Errorf(template, args...)
		l.errorTracker.CaptureError(context.Background(), err, map[string]string{
			"component": "logger",
		})
	}
}

// Errorw logs an error with key/value pairs and reports it to the error tracker.
// An error value under the "error" key is reported wrapped with msg so its
// classification survives.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)

	if l.errorTracker == nil {
		return
	}
	err := errors.Wrap(errors.ErrInternal, msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, _ := keysAndValues[i].(string); key == "error" {
			if cause, ok := keysAndValues[i+1].(error); ok {
				err = errors.Wrap(cause, msg)
			}
			break
		}
	}
	l.errorTracker.CaptureError(context.Background(), err, map[string]string{
		"component": "logger",
	})
}

// Sync flushes any buffered log entries
func Sync() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
