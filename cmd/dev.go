package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stasis/internal/build"
	"github.com/conneroisu/stasis/internal/server"
)

var devCmd = &cobra.Command{
	Use:     "dev",
	Aliases: []string{"d"},
	Short:   "Build, serve, watch and live-reload",
	Long: `Run the full development loop: build the site, serve the output directory,
poll the sources for changes, rebuild what changed and tell open pages to
reload. If the watcher fails the server keeps serving the last build.

Examples:
  stasis dev                          # site/ -> public/ on localhost:8080
  stasis dev -p 3000 --open           # custom port, open the browser
  stasis dev --interval 100ms --fifo  # faster polling, oldest rebuilds first`,
	RunE: runDev,
}

func init() {
	rootCmd.AddCommand(devCmd)
	addBuildFlags(devCmd.Flags())
	addServerFlags(devCmd.Flags())
	addWatchFlags(devCmd.Flags())
}

func runDev(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, concat(buildBindings, serverBindings, watchBindings))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	srv := server.New(cfg, logger)
	ln, err := listen(out, cfg.Build.Output, srv)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx, ln)
		cancel()
	}()
	go shutdownOnDone(ctx, srv)

	err = rebuildLoop(ctx, cfg, logger, build.New(cfg, logger), func(ctx context.Context, r build.Result) {
		printResult(out, cfg.Build.Output, r)
		paths := make([]string, len(r.Outputs))
		for i, rel := range r.Outputs {
			paths[i] = "/" + rel
		}
		srv.Reload(ctx, paths)
	})
	if err != nil && ctx.Err() == nil {
		logger.Error(ctx, err, "Live reload stopped; still serving the last build")
	}

	<-ctx.Done()
	if err := <-serveErr; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
