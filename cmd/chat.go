package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/llm"
	"clementus360/clinic-assistant/usage"
)

var (
	chatUser    string
	chatSession string
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the assistant a question and store the exchange",
	Long: `Ask the assistant a question and store the exchange.

Without --session a new session is started. The reply is printed and both
messages are saved to the configured backend.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := joinArgs(args)
		if message == "" {
			return fmt.Errorf("message must not be empty")
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

		store, err := b.userStore(ctx, chatUser)
		if err != nil {
			return err
		}
		tracker := usage.NewTracker(b.usage)
		if allowed, err := tracker.CanMakeQuery(ctx, chatUser); err != nil {
			config.Logger.Warn("Failed to check usage, allowing query: ", err)
		} else if !allowed {
			return fmt.Errorf("usage limit reached for %s", chatUser)
		}

		client, err := newLLMClient(ctx, s)
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}

		sessionID := chatSession
		if sessionID == "" {
			if sessionID, err = store.CreateSession(ctx, config.DefaultSessionTitle); err != nil {
				return err
			}
		}
		session, ok := store.Session(sessionID)
		if !ok {
			return fmt.Errorf("session %s not found", sessionID)
		}

		generator := llm.NewAssistant(client).WithHistory(session.Messages)
		result, err := conversation.NewConversation(store, generator).Turn(ctx, sessionID, message)
		if err != nil {
			return err
		}
		if !result.Fallback {
			if err := tracker.Record(ctx, chatUser, message, result.AIMessage.Content); err != nil {
				config.Logger.Warn("Failed to record usage: ", err)
			}
		}

		renderMessage(cmd.OutOrStdout(), result.AIMessage)
		fmt.Fprintln(cmd.ErrOrStderr(), idStyle.Render("session "+sessionID))
		if result.Fallback {
			return fmt.Errorf("assistant unavailable: %w", result.GenerationErr)
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatUser, "user", "", "User ID to chat as")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Session to continue (default: start a new one)")
	chatCmd.Flags().String("llm-provider", "", "LLM provider: openai, gemini or anthropic")
	chatCmd.Flags().String("llm-model", "", "Model name (defaults to the provider's default)")
	rootCmd.AddCommand(chatCmd)
}
