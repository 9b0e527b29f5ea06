package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/types"
)

// SessionStore is the durable store of one user's chat sessions in the
// chat_sessions and chat_messages tables.
type SessionStore struct {
	clients *Clients
	userID  string
}

var _ conversation.DurableStore = (*SessionStore)(nil)

func NewSessionStore(clients *Clients, userID string) *SessionStore {
	return &SessionStore{clients: clients, userID: userID}
}

// sessionRow is a chat_sessions row, optionally with its embedded messages.
type sessionRow struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Title         string          `json:"title"`
	Category      *string         `json:"category"`
	CreatedAt     time.Time       `json:"created_at"`
	LastMessageAt *time.Time      `json:"last_message_at"`
	Messages      []types.Message `json:"chat_messages"`
}

func (r sessionRow) session() types.Session {
	session := types.Session{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		CreatedAt: r.CreatedAt,
		Messages:  r.Messages,
	}
	if r.Category != nil {
		session.Category = *r.Category
	}
	if r.LastMessageAt != nil {
		session.LastMessageAt = *r.LastMessageAt
	}
	if session.Messages == nil {
		session.Messages = []types.Message{}
	}
	return session
}

// CreateSession inserts an empty session. Timestamps are assigned by the database.
func (s *SessionStore) CreateSession(ctx context.Context, title string) (types.Session, error) {
	if err := checkContext(ctx); err != nil {
		return types.Session{}, err
	}

	row := map[string]interface{}{
		"user_id": s.userID,
		"title":   title,
	}
	resp, _, err := s.clients.For(ctx).From(config.TableChatSessions).Insert(row, false, "", "", "").Execute()
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to insert session: %w", err)
	}

	var created []sessionRow
	if err := json.Unmarshal(resp, &created); err != nil {
		return types.Session{}, fmt.Errorf("failed to decode session data: %w", err)
	}
	if len(created) == 0 {
		return types.Session{}, fmt.Errorf("session insert returned no rows")
	}
	return created[0].session(), nil
}

// ListSessions returns the user's sessions with their messages, most
// recently active first.
func (s *SessionStore) ListSessions(ctx context.Context) ([]types.Session, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	resp, _, err := s.clients.For(ctx).From(config.TableChatSessions).
		Select("*, "+config.TableChatMessages+"(*)", "", false).
		Eq("user_id", s.userID).
		Order("last_message_at", &postgrest.OrderOpts{Ascending: false}).
		Order("created_at", &postgrest.OrderOpts{Ascending: true, ForeignTable: config.TableChatMessages}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}

	var rows []sessionRow
	if err := json.Unmarshal(resp, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}

	sessions := make([]types.Session, len(rows))
	for i, row := range rows {
		sessions[i] = row.session()
	}
	return sessions, nil
}

func (s *SessionStore) UpdateSessionLastMessageAt(ctx context.Context, sessionID string, at time.Time) error {
	return s.update(ctx, sessionID, map[string]interface{}{
		"last_message_at": at.UTC().Format(time.RFC3339Nano),
	})
}

// UpdateSessionCategory stores category, or NULL for an empty one.
func (s *SessionStore) UpdateSessionCategory(ctx context.Context, sessionID, category string) error {
	var value interface{}
	if category != "" {
		value = category
	}
	return s.update(ctx, sessionID, map[string]interface{}{"category": value})
}

func (s *SessionStore) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	return s.update(ctx, sessionID, map[string]interface{}{"title": title})
}

// DeleteSession removes the session's messages, then the session.
func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	_, _, err := s.clients.For(ctx).From(config.TableChatMessages).
		Delete("minimal", "").
		Eq("session_id", sessionID).
		Eq("user_id", s.userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}

	resp, _, err := s.clients.For(ctx).From(config.TableChatSessions).
		Delete("", "").
		Eq("id", sessionID).
		Eq("user_id", s.userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return expectRows(resp)
}

func (s *SessionStore) update(ctx context.Context, sessionID string, fields map[string]interface{}) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	resp, _, err := s.clients.For(ctx).From(config.TableChatSessions).
		Update(fields, "", "").
		Eq("id", sessionID).
		Eq("user_id", s.userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return expectRows(resp)
}

// expectRows maps an empty representation to ErrSessionNotFound.
func expectRows(resp []byte) error {
	var rows []sessionRow
	if err := json.Unmarshal(resp, &rows); err != nil {
		return fmt.Errorf("failed to parse update result: %w", err)
	}
	if len(rows) == 0 {
		return conversation.ErrSessionNotFound
	}
	return nil
}
