// Package conversation keeps a user's chat sessions in memory and mirrors
// every mutation to a durable store.
//
// A Store is the client-side view of one user's sessions. Remote-touching
// operations either succeed on both sides or fail with a *SyncError and
// leave the cache unchanged. The only exception is the secondary
// last_message_at write after an append, which is best-effort.
package conversation

import (
	"context"
	"time"

	"clementus360/clinic-assistant/types"
)

// DurableStore is the user-scoped persistence contract the Store consumes.
// Implementations assign ids and timestamps.
type DurableStore interface {
	CreateSession(ctx context.Context, title string) (types.Session, error)
	// ListSessions returns the user's sessions, most recently active first,
	// each carrying its messages.
	ListSessions(ctx context.Context) ([]types.Session, error)
	// ListMessages returns one session's messages in chronological order.
	ListMessages(ctx context.Context, sessionID string) ([]types.Message, error)
	InsertMessage(ctx context.Context, sessionID, content string, isAI bool) (types.Message, error)
	UpdateSessionLastMessageAt(ctx context.Context, sessionID string, at time.Time) error
	UpdateSessionCategory(ctx context.Context, sessionID, category string) error
	UpdateSessionTitle(ctx context.Context, sessionID, title string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// TransactionalAppender is implemented by durable stores that can insert a
// message and advance the session's last_message_at in a single write.
// The Store prefers it over InsertMessage plus UpdateSessionLastMessageAt.
type TransactionalAppender interface {
	AppendMessage(ctx context.Context, sessionID, content string, isAI bool) (types.Message, error)
}

// Generator turns a prompt into a response.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
