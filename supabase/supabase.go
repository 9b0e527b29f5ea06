// Package supabase stores conversations and usage in Supabase over its REST
// (PostgREST) API and resolves the Supabase user behind a request.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// NewClient creates a Supabase client authenticated with the project key.
func NewClient(apiURL, apiKey string) (*supabase.Client, error) {
	if apiURL == "" || apiKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL or SUPABASE_KEY is missing")
	}

	client, err := supabase.NewClient(apiURL, apiKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return client, nil
}

// Clients hands out PostgREST clients for one project. When the request
// context carries the caller's access token the client acts as that user,
// so Supabase checks the token and row-level security scopes every row.
// Otherwise the client uses the project key, which must then be the
// service-role key for reads and writes to succeed under row-level security.
type Clients struct {
	restURL string
	apiKey  string
	token   func(context.Context) string
}

// NewClients builds a client source for the project at apiURL. token
// returns the caller's access token for a request context, or "" when
// there is none; it may be nil.
func NewClients(apiURL, apiKey string, token func(context.Context) string) (*Clients, error) {
	if apiURL == "" || apiKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL or SUPABASE_KEY is missing")
	}
	return &Clients{
		restURL: strings.TrimRight(apiURL, "/") + supabase.REST_URL,
		apiKey:  apiKey,
		token:   token,
	}, nil
}

// For returns a fresh client for one call. postgrest records transport
// failures on the client, so a client is never shared between calls.
func (c *Clients) For(ctx context.Context) *postgrest.Client {
	bearer := c.apiKey
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			bearer = token
		}
	}
	return postgrest.NewClient(c.restURL, "public", map[string]string{
		"apikey":        c.apiKey,
		"Authorization": "Bearer " + bearer,
	})
}

// rpc calls a database function and turns both transport failures and
// PostgREST error bodies into errors. Void functions answer with an empty
// body.
func rpc(client *postgrest.Client, name string, body interface{}) error {
	resp := client.Rpc(name, "", body)
	if client.ClientError != nil {
		return fmt.Errorf("rpc %s failed: %w", name, client.ClientError)
	}
	return rpcError(name, resp)
}

// rpcError decodes the error object PostgREST returns from a failed RPC.
func rpcError(name, body string) error {
	body = strings.TrimSpace(body)
	if body == "" || !strings.HasPrefix(body, "{") {
		return nil
	}

	var execErr postgrest.ExecuteError
	if err := json.Unmarshal([]byte(body), &execErr); err != nil || execErr.Message == "" {
		return nil
	}
	return fmt.Errorf("rpc %s failed: (%s) %s", name, execErr.Code, execErr.Message)
}

// The REST client has no context support, so cancellation is only
// observed between requests.
func checkContext(ctx context.Context) error {
	return ctx.Err()
}
