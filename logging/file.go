package logging

import (
	"fmt"
	"os"
	"path/filepath"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures a size-rotated log file.
type FileOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFileWriter returns a rotating writer for path, creating the parent
// directory when needed. Close it when done.
func NewFileWriter(path string, optFns ...func(o *FileOptions)) (*lumberjack.Logger, error) {
	opts := FileOptions{
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}, nil
}
