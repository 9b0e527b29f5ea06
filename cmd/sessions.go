package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/export"
)

var (
	sessionsUser  string
	exportFormat  string
	exportOutput  string
	categoryClear bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage a user's chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently active first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, store *conversation.Store) error {
			renderSessions(cmd.OutOrStdout(), store.Sessions(), store.CurrentSessionID())
			return nil
		})
	},
}

var sessionsGroupedCmd = &cobra.Command{
	Use:   "grouped",
	Short: "List sessions grouped by category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, store *conversation.Store) error {
			renderGrouping(cmd.OutOrStdout(), conversation.GroupByCategory(store.Sessions()))
			return nil
		})
	},
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Start an empty session",
	RunE: func(cmd *cobra.Command, args []string) error {
		title := joinArgs(args)
		if title == "" {
			title = config.DefaultSessionTitle
		}
		return withSessions(cmd, func(ctx context.Context, store *conversation.Store) error {
			id, err := store.CreateSession(ctx, title)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, store *conversation.Store) error {
			session, err := store.LoadSession(ctx, args[0])
			if err != nil {
				return err
			}
			renderTranscript(cmd.OutOrStdout(), session)
			return nil
		})
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session as JSON, YAML or Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.ForFormat(exportFormat)
		if err != nil {
			return err
		}
		return withSessions(cmd, func(ctx context.Context, store *conversation.Store) error {
			session, err := store.LoadSession(ctx, args[0])
			if err != nil {
				return err
			}

			if exportOutput == "" {
				return exporter.Export(session, cmd.OutOrStdout())
			}

			path := exportOutput
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, fmt.Sprintf("session_%s.%s", session.ID, exporter.Extension()))
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			if err := exporter.Export(session, f); err != nil {
				return fmt.Errorf("failed to export session: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", path)
			return nil
		})
	},
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <session-id> <title>",
	Short: "Change a session's title",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := joinArgs(args[1:])
		if title == "" {
			return fmt.Errorf("title must not be empty")
		}
		return withSessions(cmd, func(ctx context.Context, store *conversation.Store) error {
			return store.RenameSession(ctx, args[0], title)
		})
	},
}

var sessionsCategoryCmd = &cobra.Command{
	Use:   "category <session-id> [category]",
	Short: "File a session under a category",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := strings.TrimSpace(joinArgs(args[1:]))
		if category == "" && !categoryClear {
			return fmt.Errorf("category must not be empty (use --clear to remove it)")
		}
		if categoryClear {
			category = ""
		}
		return withSessions(cmd, func(ctx context.Context, store *conversation.Store) error {
			return store.UpdateSessionCategory(ctx, args[0], category)
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, store *conversation.Store) error {
			return store.DeleteSession(ctx, args[0])
		})
	},
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsUser, "user", "", "User ID whose sessions to manage")
	sessionsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "Export format: json, yaml or md")
	sessionsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file or directory (default: stdout)")
	sessionsCategoryCmd.Flags().BoolVar(&categoryClear, "clear", false, "Remove the session's category")

	sessionsCmd.AddCommand(
		sessionsListCmd,
		sessionsGroupedCmd,
		sessionsNewCmd,
		sessionsShowCmd,
		sessionsExportCmd,
		sessionsRenameCmd,
		sessionsCategoryCmd,
		sessionsDeleteCmd,
	)
	rootCmd.AddCommand(sessionsCmd)
}

// withSessions opens the configured backend and runs fn on the loaded
// sessions of --user.
func withSessions(cmd *cobra.Command, fn func(ctx context.Context, store *conversation.Store) error) error {
	s, err := loadSettings(cmd, true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	b, err := openBackend(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", s.Backend, err)
	}
	defer b.close()

	store, err := b.userStore(ctx, sessionsUser)
	if err != nil {
		return err
	}
	return fn(ctx, store)
}
