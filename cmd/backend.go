package cmd

import (
	"context"
	"fmt"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/llm"
	"clementus360/clinic-assistant/middleware"
	"clementus360/clinic-assistant/postgres"
	"clementus360/clinic-assistant/sqlite"
	"clementus360/clinic-assistant/supabase"
	"clementus360/clinic-assistant/usage"
)

// backend is an opened storage backend: per-user session stores plus the
// usage table.
type backend struct {
	open  conversation.Opener
	usage usage.Store
	close func()
}

func openBackend(ctx context.Context, s config.Settings) (*backend, error) {
	switch s.Backend {
	case config.BackendSupabase:
		clients, err := supabase.NewClients(s.SupabaseURL, s.SupabaseKey, middleware.AccessTokenFromContext)
		if err != nil {
			return nil, err
		}
		return &backend{
			open: func(userID string) (conversation.DurableStore, error) {
				return supabase.NewSessionStore(clients, userID), nil
			},
			usage: supabase.NewUsageStore(clients),
			close: func() {},
		}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, s.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &backend{
			open: func(userID string) (conversation.DurableStore, error) {
				return db.Sessions(userID), nil
			},
			usage: db.Usage(),
			close: db.Close,
		}, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(s.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &backend{
			open: func(userID string) (conversation.DurableStore, error) {
				return db.Sessions(userID), nil
			},
			usage: db.Usage(),
			close: func() {
				if err := db.Close(); err != nil {
					config.Logger.Warn("Failed to close SQLite database: ", err)
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unsupported backend: %s", s.Backend)
}

// userStore opens userID's sessions and loads them.
func (b *backend) userStore(ctx context.Context, userID string) (*conversation.Store, error) {
	if userID == "" {
		return nil, fmt.Errorf("--user is required")
	}
	durable, err := b.open(userID)
	if err != nil {
		return nil, err
	}
	store := conversation.NewStore(userID, durable)
	if _, err := store.ListSessions(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// newIdentity picks how serve checks access tokens: the JWT secret when
// set, otherwise Supabase Auth on the supabase backend. Skipping
// verification needs InsecureSkipVerify.
func newIdentity(s config.Settings) (*supabase.Identity, error) {
	switch {
	case s.SupabaseJWTSecret != "":
		return supabase.NewIdentity(s.SupabaseJWTSecret), nil
	case s.Backend == config.BackendSupabase:
		client, err := supabase.NewClient(s.SupabaseURL, s.SupabaseKey)
		if err != nil {
			return nil, err
		}
		return supabase.NewRemoteIdentity(client), nil
	case s.InsecureSkipVerify:
		config.Logger.Warn("Token signatures are NOT verified (--insecure-skip-verify); any caller can act as any user")
		return supabase.NewUnverifiedIdentity(), nil
	}
	return nil, fmt.Errorf("SUPABASE_JWT_SECRET is not set: set it to verify access tokens, or pass --insecure-skip-verify for local development only")
}

func newLLMClient(ctx context.Context, s config.Settings) (llm.Client, error) {
	provider, err := llm.ParseProvider(s.LLMProvider)
	if err != nil {
		return nil, err
	}
	return llm.New(ctx, provider, llm.Options{
		APIKey: s.APIKeyFor(string(provider)),
		Model:  s.LLMModel,
	})
}
