package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"clementus360/clinic-assistant/usage"
)

var usageUser string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show a user's plan and remaining quota",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if usageUser == "" {
			return fmt.Errorf("--user is required")
		}
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

		stats, err := usage.NewTracker(b.usage).Usage(ctx, usageUser)
		if err != nil {
			return err
		}
		renderUsage(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	usageCmd.Flags().StringVar(&usageUser, "user", "", "User ID")
	rootCmd.AddCommand(usageCmd)
}
