package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings is the resolved runtime configuration. Values come from flags,
// then environment variables (after .env is loaded), then defaults.
type Settings struct {
	Port     int
	LogLevel string

	Backend            string
	SupabaseURL        string
	// SupabaseKey authenticates the server. HTTP requests reach Supabase
	// with the caller's own access token, so the anon key is enough for
	// serve. The CLI has no caller token and needs the service-role key.
	SupabaseKey        string
	// SupabaseJWTSecret verifies access tokens locally. Without it serve
	// verifies them with Supabase Auth on the supabase backend, and refuses
	// to start on other backends unless InsecureSkipVerify is set.
	SupabaseJWTSecret  string
	InsecureSkipVerify bool
	DatabaseURL        string
	SQLitePath         string

	LLMProvider     string
	LLMModel        string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	AnthropicAPIKey string

	RateLimitRPS   float64
	RateLimitBurst int
}

var defaults = map[string]any{
	"port":             8080,
	"log_level":        "info",
	"backend":          BackendSupabase,
	"sqlite_path":      "clinic.db",
	"llm_provider":     "gemini",
	"rate_limit_rps":   5.0,
	"rate_limit_burst": 20,
}

// envKeys lists every setting so viper resolves it from the environment
// even when no flag or default exists for it.
var envKeys = []string{
	"port", "log_level", "backend",
	"supabase_url", "supabase_key", "supabase_jwt_secret", "insecure_skip_verify",
	"database_url", "sqlite_path",
	"llm_provider", "llm_model", "openai_api_key", "gemini_api_key", "anthropic_api_key",
	"rate_limit_rps", "rate_limit_burst",
}

// LoadSettings resolves and validates Settings.
func LoadSettings(fs *pflag.FlagSet) (Settings, error) {
	s, err := ReadSettings(fs)
	if err != nil {
		return Settings{}, err
	}
	return s, s.Validate()
}

// ReadSettings resolves Settings without validating them. Flags in fs are
// bound by name with dashes mapped to underscores (--sqlite-path ->
// sqlite_path); fs may be nil.
func ReadSettings(fs *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return Settings{}, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !slices.Contains(envKeys, key) {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return Settings{}, bindErr
		}
	}

	s := Settings{
		Port:               v.GetInt("port"),
		LogLevel:           v.GetString("log_level"),
		Backend:            strings.ToLower(v.GetString("backend")),
		SupabaseURL:        v.GetString("supabase_url"),
		SupabaseKey:        v.GetString("supabase_key"),
		SupabaseJWTSecret:  v.GetString("supabase_jwt_secret"),
		InsecureSkipVerify: v.GetBool("insecure_skip_verify"),
		DatabaseURL:        v.GetString("database_url"),
		SQLitePath:         v.GetString("sqlite_path"),
		LLMProvider:        strings.ToLower(v.GetString("llm_provider")),
		LLMModel:           v.GetString("llm_model"),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		GeminiAPIKey:       v.GetString("gemini_api_key"),
		AnthropicAPIKey:    v.GetString("anthropic_api_key"),
		RateLimitRPS:       v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:     v.GetInt("rate_limit_burst"),
	}
	return s, nil
}

// Validate checks that the selected backend has what it needs.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendSupabase:
		if s.SupabaseURL == "" || s.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL or SUPABASE_KEY is missing")
		}
	case BackendPostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is missing")
		}
	case BackendSQLite:
		if s.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is missing")
		}
	default:
		return fmt.Errorf("unsupported backend: %s (supported: %s, %s, %s)", s.Backend, BackendSupabase, BackendPostgres, BackendSQLite)
	}
	if s.Port <= 0 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	return nil
}

// APIKeyFor returns the configured key for an LLM provider name.
func (s Settings) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return s.OpenAIAPIKey
	case "gemini":
		return s.GeminiAPIKey
	case "anthropic":
		return s.AnthropicAPIKey
	}
	return ""
}
