// Package cmd provides the command-line interface for stasis.
//
// Configuration System:
//
//	The CLI reads configuration from several sources, highest priority first:
//	1. Command-line flags (--port, --source, etc.)
//	2. Individual environment variables (STASIS_SERVER_PORT, etc.)
//	3. Configuration file: --config, else STASIS_CONFIG_FILE, else .stasis.yml
//	4. Built-in defaults
//
// Environment Variables:
//
//	STASIS_CONFIG_FILE: Path to custom configuration file
//	STASIS_SERVER_PORT: Override server port
//	STASIS_BUILD_OUTPUT: Override output directory
//	And so on, following the STASIS_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/stasis/internal/config"
	"github.com/conneroisu/stasis/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stasis",
	Short: "A static-site toolkit with a polling dev server",
	Long: `Stasis renders a tree of HTML pages into an output directory and runs a
development loop that rebuilds changed files and reloads open browser tabs.

Quick Start:
  stasis build                    Render site/ into public/
  stasis serve                    Serve public/ with live reload
  stasis watch                    Rebuild on change without serving
  stasis dev                      Build, serve, watch and reload`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .stasis.yml, can also use STASIS_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig points viper at the config file and enables STASIS_ environment
// overrides. A missing default file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("STASIS_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stasis")
	}

	viper.SetEnvPrefix("STASIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from --log-level and --log-format.
func newLogger(cmd *cobra.Command) (logging.Logger, error) {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: viper.GetString("log-format"),
		Output: cmd.ErrOrStderr(),
	}), nil
}

// setup binds cmd's flags, then loads configuration and the logger.
func setup(cmd *cobra.Command, bindings []flagBinding) (*config.Config, logging.Logger, error) {
	if err := bindFlags(cmd, bindings); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
