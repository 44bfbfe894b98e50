package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts "debug", "info", "warn"/"warning" or "error" into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger is the minimal logging interface used across the module. Arguments
// after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// CallLogger is implemented by loggers that keep dedicated records for model
// and tool calls. The agent uses it in place of plain call messages.
type CallLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, err error)
	LogModelCall(model string, tokens int, dur time.Duration, success bool, err error)
}

var (
	_ CallLogger = (*CookbookLogger)(nil)
	_ CallLogger = (*ZapAdapter)(nil)
)

// CookbookLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods for model and tool calls.
type CookbookLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	threadID  string
	runID     string
}

// LoggerConfig configures construction of a CookbookLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline text info level configuration
// writing to stderr so lesson output on stdout stays readable.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "text", Output: os.Stderr, CustomAttrs: map[string]any{}}
}

// NewLogger builds a CookbookLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *CookbookLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	ctx := make(map[string]any, len(cfg.CustomAttrs))
	for k, v := range cfg.CustomAttrs {
		ctx[k] = v
	}

	return &CookbookLogger{logger: slog.New(handler), level: cfg.Level, context: ctx, component: cfg.Component}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *CookbookLogger) clone() *CookbookLogger {
	nl := *l
	nl.context = make(map[string]any, len(l.context))

	for k, v := range l.context {
		nl.context[k] = v
	}

	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *CookbookLogger) WithContext(key string, value any) *CookbookLogger {
	nl := l.clone()
	nl.context[key] = value

	return nl
}

// WithComponent sets the logical component (agent, model, checkpoint, lesson).
func (l *CookbookLogger) WithComponent(c string) *CookbookLogger {
	nl := l.clone()
	nl.component = c

	return nl
}

// WithThread attaches thread and run identifiers.
func (l *CookbookLogger) WithThread(threadID, runID string) *CookbookLogger {
	nl := l.clone()
	nl.threadID = threadID
	nl.runID = runID

	return nl
}

func (l *CookbookLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+3)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}

	if l.threadID != "" {
		attrs = append(attrs, slog.String("thread_id", l.threadID))
	}

	if l.runID != "" {
		attrs = append(attrs, slog.String("run_id", l.runID))
	}

	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}

	return attrs
}

func (l *CookbookLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}

	attrs := append(l.buildAttrs(), argsToAttrs(args)...)
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2+1)

	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			attrs = append(attrs, slog.Any("!BADKEY", args[i]))
			continue
		}

		attrs = append(attrs, slog.Any(key, args[i+1]))
		i++
	}

	return attrs
}

// Debug logs at debug level.
func (l *CookbookLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *CookbookLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *CookbookLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *CookbookLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogToolCall records execution details for a tool invocation.
func (l *CookbookLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("tool_name", tool), slog.Duration("duration", dur), slog.Bool("success", success))

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	level, msg := slog.LevelInfo, "tool.call.completed"
	if !success {
		level, msg = slog.LevelError, "tool.call.failed"
	}

	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogModelCall records model call latency, token usage and success.
func (l *CookbookLogger) LogModelCall(model string, tokens int, dur time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("model", model), slog.Int("token_count", tokens), slog.Duration("duration", dur), slog.Bool("success", success))

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	level, msg := slog.LevelInfo, "model.call.completed"
	if !success {
		level, msg = slog.LevelError, "model.call.failed"
	}

	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *CookbookLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Info("operation.completed", "operation", op, "duration", time.Since(start)) }
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// NewSlogLogger creates a new CookbookLogger with the specified configuration.
func NewSlogLogger(level LogLevel, format string, addSource bool) *CookbookLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level

	if format != "" {
		cfg.Format = format
	}

	cfg.AddSource = addSource

	return NewLogger(cfg)
}
