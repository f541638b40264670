package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stasis/internal/build"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Render the site once",
	Long: `Render every page under the source directory into the output directory.
HTML pages are rendered (frontmatter, layouts, drafts); every other file is
copied through unchanged.

Examples:
  stasis build                        # site/ -> public/
  stasis build -s content -o dist     # custom directories
  stasis build --drafts -j 8          # include drafts, 8 workers`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd.Flags())
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, buildBindings)
	if err != nil {
		return err
	}

	builder := build.New(cfg, logger)
	result, err := builder.Build(cmd.Context())
	printResult(cmd.OutOrStdout(), builder.Output(), result)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}

func printResult(w io.Writer, output string, r build.Result) {
	fmt.Fprintf(w, "Built %s: %d rendered, %d copied, %d removed, %d skipped\n",
		output, r.Rendered, r.Copied, r.Removed, r.Skipped)
}
