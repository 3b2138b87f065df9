package logging

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ServiceLogger is a json structured leveled logger
// used by the service to log messages to stdout
type ServiceLogger struct {
	*zerolog.Logger
}

var (
	serviceLogLevelToZeroLogLevel = map[string]zerolog.Level{
		"TRACE": zerolog.TraceLevel,
		"DEBUG": zerolog.DebugLevel,
		"INFO":  zerolog.InfoLevel,
		"ERROR": zerolog.ErrorLevel,
	}
)

type options struct {
	output      io.Writer
	logFilePath string
}

// Option configures where a ServiceLogger writes
type Option func(*options)

// WithOutput replaces stdout as the primary log destination
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithLogFile additionally writes logs to a size rotated file at path,
// an empty path leaves file logging disabled
func WithLogFile(path string) Option {
	return func(o *options) {
		o.logFilePath = path
	}
}

// New creates and returns a new ServiceLogger and error (if any).
func New(logLevel string, opts ...Option) (ServiceLogger, error) {
	zerologLevel, exists := serviceLogLevelToZeroLogLevel[logLevel]
	if !exists {
		return ServiceLogger{}, fmt.Errorf("invalid zero log level provided %s ", logLevel)
	}

	o := options{output: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	output := o.output
	if o.logFilePath != "" {
		output = io.MultiWriter(output, &lumberjack.Logger{
			Filename:   o.logFilePath,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	serviceLog := zerolog.New(output).With().Timestamp().Caller().Logger()

	zerolog.SetGlobalLevel(zerologLevel)

	return ServiceLogger{
		Logger: &serviceLog,
	}, nil
}

// WithFields returns a child ServiceLogger carrying the fields
// added through the provided context builder
func (l *ServiceLogger) WithFields(fields func(zerolog.Context) zerolog.Context) *ServiceLogger {
	child := fields(l.Logger.With()).Logger()
	return &ServiceLogger{Logger: &child}
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying the logger
func (l *ServiceLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in ctx by WithContext,
// falling back to fallback, or a disabled logger when both are absent
func FromContext(ctx context.Context, fallback *ServiceLogger) *ServiceLogger {
	if l, ok := ctx.Value(contextKey{}).(*ServiceLogger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	nop := zerolog.Nop()
	return &ServiceLogger{Logger: &nop}
}
