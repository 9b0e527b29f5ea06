package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clementus360/clinic-assistant/supabase"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for local testing",
	Long: `Issue an access token for local testing.

The token is signed with SUPABASE_JWT_SECRET, so a server started with the
same secret accepts it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUser == "" {
			return fmt.Errorf("--user is required")
		}
		s, err := loadSettings(cmd, false)
		if err != nil {
			return err
		}

		token, err := supabase.SignToken(s.SupabaseJWTSecret, tokenUser, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User ID to put in the token's sub claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
