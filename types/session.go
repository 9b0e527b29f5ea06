package types

import (
	"strings"
	"time"
)

// Session is a titled, timestamped conversation between a user and the assistant.
// A blank Category marks the session uncategorized.
type Session struct {
	ID            string    `json:"id,omitempty" yaml:"id"` // assigned by the durable store
	UserID        string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Title         string    `json:"title" yaml:"title"`
	Category      string    `json:"category,omitempty" yaml:"category,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	LastMessageAt time.Time `json:"last_message_at" yaml:"last_message_at"`
	Messages      []Message `json:"messages" yaml:"messages"`
}

// Clone returns a copy of s that shares no memory with it.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// Uncategorized reports whether the session has no category label.
func (s Session) Uncategorized() bool {
	return strings.TrimSpace(s.Category) == ""
}

type SessionRequest struct {
	Title string `json:"title"`
}

type CategoryRequest struct {
	Category string `json:"category"`
}

type CurrentSessionRequest struct {
	SessionID string `json:"session_id"`
}

type GetSessionsResponse struct {
	Success          bool      `json:"success"`
	Sessions         []Session `json:"sessions"`
	CurrentSessionID string    `json:"current_session_id,omitempty"`
}

type SessionResponse struct {
	Success bool    `json:"success"`
	Session Session `json:"session"`
	Loading bool    `json:"loading,omitempty"`
}

type CategoryGroupResponse struct {
	Name     string    `json:"name"`
	Sessions []Session `json:"sessions"`
}

type GroupedSessionsResponse struct {
	Success       bool                    `json:"success"`
	Categories    []CategoryGroupResponse `json:"categories"`
	Uncategorized []Session               `json:"uncategorized"`
}
