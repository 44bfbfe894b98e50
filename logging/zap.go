package logging

import (
	"time"

	"go.uber.org/zap"
)

// ZapAdapter wraps a *zap.Logger to implement the Logger interface. Key/value
// pairs are passed through the sugared logger.
type ZapAdapter struct {
	sugar *zap.SugaredLogger
}

// NewZapAdapter creates a Logger backed by zap.
func NewZapAdapter(l *zap.Logger) *ZapAdapter {
	if l == nil {
		l = zap.NewNop()
	}

	return &ZapAdapter{sugar: l.Sugar()}
}

// Debug logs a debug message.
func (z *ZapAdapter) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }

// Info logs an informational message.
func (z *ZapAdapter) Info(msg string, args ...any) { z.sugar.Infow(msg, args...) }

// Warn logs a warning message.
func (z *ZapAdapter) Warn(msg string, args ...any) { z.sugar.Warnw(msg, args...) }

// Error logs an error message.
func (z *ZapAdapter) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

// Sync flushes buffered entries.
func (z *ZapAdapter) Sync() error { return z.sugar.Sync() }

// LogToolCall records execution details for a tool invocation.
func (z *ZapAdapter) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	kv := []any{"tool_name", tool, "duration", dur, "success", success}
	if err != nil {
		z.sugar.Errorw("tool.call.failed", append(kv, "error", err.Error())...)
		return
	}

	z.sugar.Infow("tool.call.completed", kv...)
}

// LogModelCall records model call latency, token usage and success.
func (z *ZapAdapter) LogModelCall(model string, tokens int, dur time.Duration, success bool, err error) {
	kv := []any{"model", model, "token_count", tokens, "duration", dur, "success", success}
	if err != nil {
		z.sugar.Errorw("model.call.failed", append(kv, "error", err.Error())...)
		return
	}

	z.sugar.Infow("model.call.completed", kv...)
}
