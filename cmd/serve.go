package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/handlers"
	"clementus360/clinic-assistant/llm"
	"clementus360/clinic-assistant/middleware"
	"clementus360/clinic-assistant/routes"
	"clementus360/clinic-assistant/types"
	"clementus360/clinic-assistant/usage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Every route except /health requires a Supabase access token in the
Authorization header. Tokens are verified with SUPABASE_JWT_SECRET when it
is set, otherwise with Supabase Auth on the supabase backend. The postgres
and sqlite backends refuse to start without a secret unless
--insecure-skip-verify is given.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("llm-provider", "", "LLM provider: openai, gemini or anthropic")
	serveCmd.Flags().String("llm-model", "", "Model name (defaults to the provider's default)")
	serveCmd.Flags().Float64("rate-limit-rps", 5, "Requests per second allowed per client (0 disables)")
	serveCmd.Flags().Int("rate-limit-burst", 20, "Burst size per client")
	serveCmd.Flags().Bool("insecure-skip-verify", false, "Accept access tokens without verifying them (local development only)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd, true)
	if err != nil {
		return err
	}

	identity, err := newIdentity(s)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", s.Backend, err)
	}
	defer b.close()

	client, err := newLLMClient(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	assistant := llm.NewAssistant(client)

	h := &handlers.Handler{
		Registry: conversation.NewRegistry(b.open),
		Generator: func(history []types.Message) conversation.Generator {
			return assistant.WithHistory(history)
		},
		Consent: func(ctx context.Context, request string) (types.ConsentForm, error) {
			return llm.GenerateConsentForm(ctx, client, request)
		},
		Usage: usage.NewTracker(b.usage),
	}

	go h.Registry.Run(ctx)

	var limiter *middleware.RateLimiter
	if s.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(s.RateLimitRPS, s.RateLimitBurst)
		go limiter.Run(ctx)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           routes.NewRouter(h, identity, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	config.Logger.WithFields(logrus.Fields{
		"port":     s.Port,
		"backend":  s.Backend,
		"provider": client.Provider(),
		"model":    client.Model(),
	}).Info("Server is running")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	config.Logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
