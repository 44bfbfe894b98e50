package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcookbook/lessons"
	"github.com/hupe1980/agentcookbook/logging"
	"github.com/hupe1980/agentcookbook/run"
	"github.com/hupe1980/agentcookbook/telemetry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all lessons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSLUG\tTITLE")

		for _, l := range lessons.All() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", l.ID, l.Slug, l.Title)
		}

		return tw.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id|slug>",
	Short: "Describe a lesson",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, ok := lessons.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown lesson %q", args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n", l.ID, l.Title)
		fmt.Fprintf(out, "slug: %s\n\n%s\n", l.Slug, l.Summary)

		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <id|slug|all>...",
	Short: "Run one or more lessons",
	Example: `  cookbook run 1
  cookbook run memory structured-output
  cookbook run all --timeout 5m`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		selected, err := selectLessons(args)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		log := logging.NewZapAdapter(logger)

		if cfg.Telemetry.Enabled {
			providers, err := telemetry.Init(ctx, cfg.Telemetry)
			if err != nil {
				return err
			}

			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if err := providers.Shutdown(sctx); err != nil {
					log.Warn("telemetry.shutdown.failed", "error", err)
				}
			}()

			h, err := telemetry.NewHandler(providers.Tracer, providers.Meter)
			if err != nil {
				return err
			}

			ctx = run.WithHandlers(ctx, h)
		}

		env, err := lessons.NewEnv(cfg, func(e *lessons.Env) {
			e.Out = cmd.OutOrStdout()
			e.Logger = log
		})
		if err != nil {
			return err
		}

		var errs []error

		for _, l := range selected {
			if err := runLesson(ctx, env, log, l); err != nil {
				errs = append(errs, fmt.Errorf("lesson %s: %w", l.ID, err))

				if ctx.Err() != nil {
					break
				}
			}
		}

		return errors.Join(errs...)
	},
}

// selectLessons resolves ids and slugs in argument order. "all" selects
// every lesson.
func selectLessons(args []string) ([]lessons.Lesson, error) {
	var out []lessons.Lesson

	for _, arg := range args {
		if strings.EqualFold(arg, "all") {
			return lessons.All(), nil
		}

		l, ok := lessons.Lookup(arg)
		if !ok {
			return nil, fmt.Errorf("unknown lesson %q", arg)
		}

		out = append(out, l)
	}

	return out, nil
}

func runLesson(ctx context.Context, env *lessons.Env, log logging.Logger, l lessons.Lesson) error {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()

	log.Info("lesson.start", "id", l.ID, "slug", l.Slug)

	if err := l.Run(ctx, env); err != nil {
		log.Error("lesson.failed", "id", l.ID, "duration", time.Since(start), "error", err)
		return err
	}

	log.Info("lesson.end", "id", l.ID, "duration", time.Since(start))

	return nil
}
