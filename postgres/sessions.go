package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/types"
)

// SessionStore holds one user's sessions. Appends lock the session row,
// insert the message and advance last_message_at in one transaction.
type SessionStore struct {
	pool   *pgxpool.Pool
	userID string
}

var (
	_ conversation.DurableStore          = (*SessionStore)(nil)
	_ conversation.TransactionalAppender = (*SessionStore)(nil)
)

type sessionRow struct {
	ID            string    `db:"id"`
	Title         string    `db:"title"`
	Category      *string   `db:"category"`
	CreatedAt     time.Time `db:"created_at"`
	LastMessageAt time.Time `db:"last_message_at"`
}

func (r sessionRow) session(userID string) types.Session {
	session := types.Session{
		ID:            r.ID,
		UserID:        userID,
		Title:         r.Title,
		CreatedAt:     r.CreatedAt,
		LastMessageAt: r.LastMessageAt,
		Messages:      []types.Message{},
	}
	if r.Category != nil {
		session.Category = *r.Category
	}
	return session
}

type messageRow struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	UserID    string    `db:"user_id"`
	Content   string    `db:"content"`
	IsAI      bool      `db:"is_ai"`
	CreatedAt time.Time `db:"created_at"`
}

func (r messageRow) message() types.Message {
	return types.Message(r)
}

const (
	sessionColumns = `id::text AS id, title, category, created_at, last_message_at`
	messageColumns = `id::text AS id, session_id::text AS session_id, user_id::text AS user_id, content, is_ai, created_at`
)

func (s *SessionStore) CreateSession(ctx context.Context, title string) (types.Session, error) {
	rows, _ := s.pool.Query(ctx, `
		INSERT INTO chat_sessions (user_id, title)
		VALUES ($1, $2)
		RETURNING `+sessionColumns, s.userID, title)
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[sessionRow])
	if err != nil {
		return types.Session{}, fmt.Errorf("inserting session: %w", err)
	}
	return row.session(s.userID), nil
}

// ListSessions returns the user's sessions with their messages, most
// recently active first.
func (s *SessionStore) ListSessions(ctx context.Context) ([]types.Session, error) {
	rows, _ := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY last_message_at DESC`, s.userID)
	sessionRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[sessionRow])
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}

	sessions := make([]types.Session, len(sessionRows))
	index := make(map[string]int, len(sessionRows))
	for i, row := range sessionRows {
		sessions[i] = row.session(s.userID)
		index[row.ID] = i
	}

	messages, err := s.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at, id`, s.userID)
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		if i, ok := index[msg.SessionID]; ok {
			sessions[i].Messages = append(sessions[i].Messages, msg)
		}
	}
	return sessions, nil
}

func (s *SessionStore) ListMessages(ctx context.Context, sessionID string) ([]types.Message, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = $1 AND user_id = $2)
	`, sessionID, s.userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	if !exists {
		return nil, conversation.ErrSessionNotFound
	}

	return s.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE session_id = $1 AND user_id = $2
		ORDER BY created_at, id`, sessionID, s.userID)
}

// InsertMessage stores a message without touching the session row.
func (s *SessionStore) InsertMessage(ctx context.Context, sessionID, content string, isAI bool) (types.Message, error) {
	var msg types.Message
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		msg, err = s.insertMessage(ctx, tx, sessionID, content, isAI)
		return err
	})
	return msg, err
}

func (s *SessionStore) AppendMessage(ctx context.Context, sessionID, content string, isAI bool) (types.Message, error) {
	var msg types.Message
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		msg, err = s.insertMessage(ctx, tx, sessionID, content, isAI)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE chat_sessions SET last_message_at = $3 WHERE id = $1 AND user_id = $2
		`, sessionID, s.userID, msg.CreatedAt); err != nil {
			return fmt.Errorf("updating last_message_at: %w", err)
		}
		return nil
	})
	return msg, err
}

// insertMessage locks the session row and stamps the message strictly after
// the session's previous message.
func (s *SessionStore) insertMessage(ctx context.Context, tx pgx.Tx, sessionID, content string, isAI bool) (types.Message, error) {
	var floor time.Time
	err := tx.QueryRow(ctx, `
		SELECT GREATEST(
			s.created_at,
			(SELECT MAX(m.created_at) + interval '1 microsecond' FROM chat_messages m WHERE m.session_id = s.id)
		)
		FROM chat_sessions s
		WHERE s.id = $1 AND s.user_id = $2
		FOR UPDATE
	`, sessionID, s.userID).Scan(&floor)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Message{}, conversation.ErrSessionNotFound
	}
	if err != nil {
		return types.Message{}, fmt.Errorf("locking session: %w", err)
	}

	rows, _ := tx.Query(ctx, `
		INSERT INTO chat_messages (session_id, user_id, content, is_ai, created_at)
		VALUES ($1, $2, $3, $4, GREATEST(clock_timestamp(), $5))
		RETURNING `+messageColumns, sessionID, s.userID, content, isAI, floor)
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[messageRow])
	if err != nil {
		return types.Message{}, fmt.Errorf("inserting message: %w", err)
	}
	return row.message(), nil
}

func (s *SessionStore) UpdateSessionLastMessageAt(ctx context.Context, sessionID string, at time.Time) error {
	return s.exec(ctx, `UPDATE chat_sessions SET last_message_at = $3 WHERE id = $1 AND user_id = $2`, sessionID, at)
}

// UpdateSessionCategory stores category, or NULL for an empty one.
func (s *SessionStore) UpdateSessionCategory(ctx context.Context, sessionID, category string) error {
	return s.exec(ctx, `UPDATE chat_sessions SET category = NULLIF($3, '') WHERE id = $1 AND user_id = $2`, sessionID, category)
}

func (s *SessionStore) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	return s.exec(ctx, `UPDATE chat_sessions SET title = $3 WHERE id = $1 AND user_id = $2`, sessionID, title)
}

// DeleteSession removes the session; its messages go with it by cascade.
func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.exec(ctx, `DELETE FROM chat_sessions WHERE id = $1 AND user_id = $2`, sessionID)
}

// exec runs a statement taking (session id, user id, extra...) and maps
// zero affected rows to ErrSessionNotFound.
func (s *SessionStore) exec(ctx context.Context, query, sessionID string, extra ...any) error {
	args := append([]any{sessionID, s.userID}, extra...)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conversation.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) queryMessages(ctx context.Context, query string, args ...any) ([]types.Message, error) {
	rows, _ := s.pool.Query(ctx, query, args...)
	messageRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[messageRow])
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}

	messages := make([]types.Message, len(messageRows))
	for i, row := range messageRows {
		messages[i] = row.message()
	}
	return messages, nil
}
