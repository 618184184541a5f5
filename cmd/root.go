package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/mailtask/internal/model"
)

// rootCmd represents the base command for the mailtask application
var rootCmd = &cobra.Command{
	Use:   "mailtask",
	Short: "Turns webmail conversations into tracker tasks",
	Long: `mailtask adds "Add to task" triggers to a webmail conversation and
files the email as a new task, or as a comment on an existing one, in your
task tracker.

It can run as:
  - A terminal composer over a page snapshot or the browser bridge (default)
  - A headless bridge serving the in-browser shim`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

var (
	configPath string
	logLevel   string
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailtask version %s\n" .Version}}`)

	// Without a subcommand, open the composer.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "compose")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(newComposeCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
