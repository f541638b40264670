package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stasis/internal/build"
	"github.com/conneroisu/stasis/internal/config"
	"github.com/conneroisu/stasis/internal/logging"
	"github.com/conneroisu/stasis/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild on change without serving",
	Long: `Build once, then poll the source directory and rebuild changed files.
This is useful when another server already serves the output directory.

Examples:
  stasis watch                          # poll every 300ms
  stasis watch --interval 1s            # poll less often
  stasis watch --disable-delete         # keep outputs of deleted sources`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addBuildFlags(watchCmd.Flags())
	addWatchFlags(watchCmd.Flags())
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, concat(buildBindings, watchBindings))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	err = rebuildLoop(ctx, cfg, logger, build.New(cfg, logger), func(_ context.Context, r build.Result) {
		printResult(out, cfg.Build.Output, r)
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// rebuildLoop snapshots the source tree, runs a full build, then applies
// every generation of changes until ctx ends or the watcher fails. Failed
// rebuilds are logged and do not stop the loop. onChange runs after the
// initial build and after each generation that changed the output.
func rebuildLoop(
	ctx context.Context,
	cfg *config.Config,
	logger logging.Logger,
	builder *build.Builder,
	onChange func(context.Context, build.Result),
	opts ...watcher.Option,
) error {
	opts = append([]watcher.Option{
		watcher.WithLogger(logger),
		watcher.WithFilters(build.DefaultFilters(cfg)...),
	}, opts...)
	w := watcher.New(cfg.Build.Source, cfg.Watch.Interval, cfg.Watch.DisableDelete, opts...)
	// Snapshot first so edits made during the initial build are seen.
	if err := w.Init(ctx); err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", cfg.Build.Source, err)
	}

	result, err := builder.Build(ctx)
	if err != nil {
		logger.Error(ctx, err, "Initial build failed")
	}
	onChange(ctx, result)

	logger.Info(ctx, "Watching for changes", "source", cfg.Build.Source, "interval", cfg.Watch.Interval)
	for events, err := range w.Generations(ctx) {
		if err != nil {
			return fmt.Errorf("watcher stopped: %w", err)
		}
		for _, ev := range events {
			logger.Debug(ctx, "Change detected", "type", ev.Type.String(), "path", ev.Path)
		}

		result, err := builder.Apply(ctx, events)
		if err != nil {
			logger.Error(ctx, err, "Rebuild failed")
		}
		if result.Total() > 0 {
			onChange(ctx, result)
		}
	}
	return nil
}
