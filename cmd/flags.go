package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/stasis/internal/config"
)

// flagBinding ties a command flag to a configuration key.
type flagBinding struct {
	flag string
	key  string
}

// Several commands share flag names, so keys are bound when a command runs
// rather than in init; otherwise the last registered command would win.
func bindFlags(cmd *cobra.Command, bindings []flagBinding) error {
	for _, b := range bindings {
		flag := cmd.Flags().Lookup(b.flag)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", b.flag)
		}
		if err := viper.BindPFlag(b.key, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", b.flag, err)
		}
	}
	return nil
}

var buildBindings = []flagBinding{
	{"source", "build.source"},
	{"output", "build.output"},
	{"workers", "build.workers"},
	{"drafts", "build.drafts"},
	{"fifo", "build.fifo"},
}

var serverBindings = []flagBinding{
	{"host", "server.host"},
	{"port", "server.port"},
	{"open", "server.open"},
	{"live-reload", "server.live_reload"},
	{"reload-anchor", "server.reload_anchor"},
}

var watchBindings = []flagBinding{
	{"interval", "watch.interval"},
	{"disable-delete", "watch.disable_delete"},
	{"ignore", "watch.ignore"},
}

func addBuildFlags(fs *pflag.FlagSet) {
	fs.StringP("source", "s", config.DefaultSource, "Source directory")
	fs.StringP("output", "o", config.DefaultOutput, "Output directory")
	fs.IntP("workers", "j", 0, "Parallel build workers (default: number of CPUs)")
	fs.Bool("drafts", false, "Render pages marked as drafts")
	fs.Bool("fifo", false, "Serve queued rebuilds oldest first")
}

func addServerFlags(fs *pflag.FlagSet) {
	fs.String("host", config.DefaultHost, "Host to bind to")
	fs.IntP("port", "p", config.DefaultPort, "Port to serve on")
	fs.Bool("open", false, "Open the browser once serving")
	fs.Bool("live-reload", true, "Inject the live-reload script into HTML pages")
	fs.String("reload-anchor", config.DefaultReloadAnchor, "Markup after which the reload script is inserted")
}

func addWatchFlags(fs *pflag.FlagSet) {
	fs.Duration("interval", config.DefaultInterval, "Polling interval")
	fs.Bool("disable-delete", false, "Ignore deleted source files")
	fs.StringSlice("ignore", []string{"node_modules", ".git"}, "Glob patterns to skip")
}

func concat(groups ...[]flagBinding) []flagBinding {
	var out []flagBinding
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
