package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stasis/internal/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for stasis including the version, git
commit, build time, Go version and target platform.

Examples:
  stasis version                # Short summary
  stasis version --detailed     # Every build field
  stasis version --format json  # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().Bool("short", false, "Show short version only")
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	short, _ := cmd.Flags().GetBool("short")
	detailed, _ := cmd.Flags().GetBool("detailed")

	info := version.Get()
	out := cmd.OutOrStdout()

	switch format {
	case "json":
		return writeVersionJSON(out, info)
	case "text":
		switch {
		case short:
			fmt.Fprintln(out, info.Short())
		case detailed:
			writeVersionDetailed(out, info)
		default:
			writeVersionDefault(out, info)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}
}

func writeVersionDefault(w io.Writer, info version.BuildInfo) {
	fmt.Fprintf(w, "stasis %s", info.Short())
	if info.Dirty {
		fmt.Fprint(w, " (dirty)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
	fmt.Fprintf(w, "Platform: %s\n", info.Platform)
}

func writeVersionDetailed(w io.Writer, info version.BuildInfo) {
	fmt.Fprintln(w, info.String())
	if info.IsRelease() {
		fmt.Fprintln(w, "Build type: release")
	} else {
		fmt.Fprintln(w, "Build type: development")
	}
}

func writeVersionJSON(w io.Writer, info version.BuildInfo) error {
	payload := struct {
		version.BuildInfo
		IsRelease bool `json:"is_release"`
	}{info, info.IsRelease()}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
