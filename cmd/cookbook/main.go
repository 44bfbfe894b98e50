// Command cookbook lists and runs the agent orchestration lessons.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hupe1980/agentcookbook/config"
	"github.com/hupe1980/agentcookbook/logging"
)

var (
	// Global flags
	configPath      string
	verbose         bool
	timeout         time.Duration
	exportTelemetry bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cookbook",
	Short: "Runnable lessons on building LLM agents in Go",
	Long: `cookbook walks through agent orchestration patterns one lesson at a time:
tools, memory, middleware, structured output, streaming, multimodal input,
rate limiting, token accounting and runtime configuration.

Provider keys are read from the environment (OPENAI_API_KEY,
ANTHROPIC_API_KEY, GEMINI_API_KEY) or a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("timeout") {
			cfg.Timeout = timeout
		}

		if exportTelemetry {
			cfg.Telemetry.Enabled = true
		}

		logger, err = newLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cookbook.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout per lesson")
	rootCmd.PersistentFlags().BoolVar(&exportTelemetry, "telemetry", false, "Export traces and metrics to the configured files")

	rootCmd.AddCommand(listCmd, showCmd, runCmd)
}

// newLogger builds a production zap logger. A configured log file receives
// JSON entries through a rotating writer instead of stderr.
func newLogger(lc config.LogConfig, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel

	if lc.Level != "" {
		l, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, err
		}

		level = l
	}

	if debug {
		level = zapcore.DebugLevel
	}

	if lc.File == "" {
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(level)

		if lc.Format == "text" {
			zc.Encoding = "console"
			zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		return zc.Build()
	}

	w, err := logging.NewFileWriter(lc.File, func(o *logging.FileOptions) {
		o.MaxSizeMB = lc.MaxSizeMB
		o.MaxBackups = lc.MaxBackups
		o.MaxAgeDays = lc.MaxAgeDays
		o.Compress = lc.Compress
	})
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		level,
	)

	return zap.New(core), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
