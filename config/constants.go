package config

const (
	// DefaultSessionTitle is used when a chat is started without a title.
	DefaultSessionTitle = "New Chat"

	// FallbackAIResponse completes a turn whose generation failed.
	FallbackAIResponse = "I apologize, but I encountered an error. Please try again."

	ConsentFormErrorMessage = "Failed to generate consent form. Please try again."
)

// Table names in the Supabase / Postgres schema.
const (
	TableChatSessions = "chat_sessions"
	TableChatMessages = "chat_messages"
	TableUserUsage    = "user_usage"

	RPCIncrementUsage = "increment_usage"
)

// Backends accepted by Settings.Backend.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)
