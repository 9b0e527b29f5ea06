package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/postgrest-go"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/types"
)

// InsertMessage stores one message. created_at is assigned by the database.
func (s *SessionStore) InsertMessage(ctx context.Context, sessionID, content string, isAI bool) (types.Message, error) {
	if err := checkContext(ctx); err != nil {
		return types.Message{}, err
	}

	row := map[string]interface{}{
		"session_id": sessionID,
		"user_id":    s.userID,
		"content":    content,
		"is_ai":      isAI,
	}
	resp, _, err := s.clients.For(ctx).From(config.TableChatMessages).Insert(row, false, "", "", "").Execute()
	if err != nil {
		return types.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}

	var created []types.Message
	if err := json.Unmarshal(resp, &created); err != nil {
		return types.Message{}, fmt.Errorf("failed to decode message data: %w", err)
	}
	if len(created) == 0 {
		return types.Message{}, fmt.Errorf("message insert returned no rows")
	}
	return created[0], nil
}

// ListMessages returns a session's messages in chronological order.
func (s *SessionStore) ListMessages(ctx context.Context, sessionID string) ([]types.Message, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var messages []types.Message
	_, err := s.clients.For(ctx).From(config.TableChatMessages).
		Select("*", "", false).
		Eq("session_id", sessionID).
		Eq("user_id", s.userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&messages)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	if messages == nil {
		messages = []types.Message{}
	}
	return messages, nil
}
