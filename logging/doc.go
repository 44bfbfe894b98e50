// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn,
// Error) with slog-style key/value arguments. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter and CookbookLogger built on log/slog
//   - ZapAdapter for the command line tool
//   - NewFileWriter, a size-rotated file sink
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Loggers that also implement CallLogger receive dedicated model and tool
// call records from the agent.
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	a := agent.New(m, agent.WithLogger(logger))
package logging
