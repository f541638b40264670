package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stasis/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the output directory",
	Long: `Serve the output directory over HTTP with conditional GET, Accept
negotiation and live reload. Nothing is rebuilt; see "stasis dev" for that.

Examples:
  stasis serve                    # public/ on localhost:8080
  stasis serve -p 3000 --open     # custom port, open the browser
  stasis serve --live-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd.Flags())
	serveCmd.Flags().StringP("output", "o", "public", "Directory to serve")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, concat(serverBindings, []flagBinding{{"output", "build.output"}}))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	srv := server.New(cfg, logger)
	ln, err := listen(cmd.OutOrStdout(), cfg.Build.Output, srv)
	if err != nil {
		return err
	}
	go shutdownOnDone(ctx, srv)

	if err := srv.Serve(ctx, ln); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// listen binds srv and announces the address actually bound.
func listen(out io.Writer, root string, srv *server.Server) (net.Listener, error) {
	ln, err := srv.Listen()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Serving %s at http://%s\n", root, ln.Addr())
	return ln, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// shutdownOnDone gracefully stops srv once ctx ends.
func shutdownOnDone(ctx context.Context, srv *server.Server) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error during server shutdown: %v\n", err)
	}
}
