package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clementus360/clinic-assistant/config"
)

var (
	version = "dev"
	commit  = "unknown"

	envFiles []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "clinic-assistant",
	Short: "Chat assistant backend for aesthetic clinics",
	Long: `Chat assistant backend for aesthetic clinics.

Serves the chat, session and consent form API, and manages stored
conversations from the command line.

Quick Start:
  clinic-assistant serve                               # Start the HTTP API
  clinic-assistant sessions list --user <id>           # List a user's sessions
  clinic-assistant sessions export <id> --format md    # Export a transcript
  clinic-assistant token --user <id>                   # Issue a development token`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.InitLogger()
		config.LoadEnv(envFiles...)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Env file(s) to load (default: .env if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "", "Storage backend: supabase, postgres or sqlite")
	rootCmd.PersistentFlags().String("sqlite-path", "", "SQLite database file for the sqlite backend")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection string for the postgres backend")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadSettings resolves settings from flags and the environment and applies
// the log level. validate is false for commands that need no backend.
func loadSettings(cmd *cobra.Command, validate bool) (config.Settings, error) {
	s, err := config.ReadSettings(cmd.Flags())
	if err != nil {
		return config.Settings{}, err
	}
	config.SetLogLevel(s.LogLevel)
	if validate {
		if err := s.Validate(); err != nil {
			return config.Settings{}, err
		}
	}
	return s, nil
}
