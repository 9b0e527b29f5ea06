package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/types"
)

// SessionStore holds one user's sessions. Appends insert the message and
// advance last_message_at in the same transaction.
type SessionStore struct {
	db     *DB
	userID string
}

var (
	_ conversation.DurableStore          = (*SessionStore)(nil)
	_ conversation.TransactionalAppender = (*SessionStore)(nil)
)

func (s *SessionStore) CreateSession(ctx context.Context, title string) (types.Session, error) {
	now := s.db.now().UTC()
	session := types.Session{
		ID:            uuid.NewString(),
		UserID:        s.userID,
		Title:         title,
		CreatedAt:     fromMicros(micros(now)),
		LastMessageAt: fromMicros(micros(now)),
		Messages:      []types.Message{},
	}

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, title, category, created_at, last_message_at)
		VALUES (?, ?, ?, NULL, ?, ?)
	`, session.ID, s.userID, title, micros(now), micros(now))
	if err != nil {
		return types.Session{}, errors.Wrap(err, "inserting session")
	}
	return session, nil
}

// ListSessions returns the user's sessions with their messages, most
// recently active first.
func (s *SessionStore) ListSessions(ctx context.Context) ([]types.Session, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, title, category, created_at, last_message_at
		FROM chat_sessions
		WHERE user_id = ?
		ORDER BY last_message_at DESC
	`, s.userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	defer rows.Close()

	var sessions []types.Session
	index := make(map[string]int)
	for rows.Next() {
		var (
			session              types.Session
			category             sql.NullString
			createdAt, lastMsgAt int64
		)
		if err := rows.Scan(&session.ID, &session.Title, &category, &createdAt, &lastMsgAt); err != nil {
			return nil, errors.Wrap(err, "scanning session row")
		}
		session.UserID = s.userID
		session.Category = category.String
		session.CreatedAt = fromMicros(createdAt)
		session.LastMessageAt = fromMicros(lastMsgAt)
		session.Messages = []types.Message{}
		index[session.ID] = len(sessions)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating session rows")
	}
	rows.Close()

	messages, err := s.queryMessages(ctx, `
		SELECT id, session_id, content, is_ai, created_at
		FROM chat_messages
		WHERE user_id = ?
		ORDER BY created_at, rowid
	`, s.userID)
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
	var exists int
	err := s.db.db.QueryRowContext(ctx, `
		SELECT 1 FROM chat_sessions WHERE id = ? AND user_id = ?
	`, sessionID, s.userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, conversation.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying session")
	}

	return s.queryMessages(ctx, `
		SELECT id, session_id, content, is_ai, created_at
		FROM chat_messages
		WHERE session_id = ? AND user_id = ?
		ORDER BY created_at, rowid
	`, sessionID, s.userID)
}

// InsertMessage stores a message without touching the session row.
func (s *SessionStore) InsertMessage(ctx context.Context, sessionID, content string, isAI bool) (types.Message, error) {
	var msg types.Message
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		msg, err = s.insertMessage(ctx, tx, sessionID, content, isAI)
		return err
	})
	return msg, err
}

// AppendMessage stores a message and advances the session's last_message_at
// in one transaction.
func (s *SessionStore) AppendMessage(ctx context.Context, sessionID, content string, isAI bool) (types.Message, error) {
	var msg types.Message
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		msg, err = s.insertMessage(ctx, tx, sessionID, content, isAI)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE chat_sessions SET last_message_at = ? WHERE id = ? AND user_id = ?
		`, micros(msg.CreatedAt), sessionID, s.userID)
		return errors.Wrap(err, "updating last_message_at")
	})
	return msg, err
}

// insertMessage assigns a created_at strictly after every earlier message
// of the session, so messages stay ordered even when the clock stalls.
func (s *SessionStore) insertMessage(ctx context.Context, tx *sql.Tx, sessionID, content string, isAI bool) (types.Message, error) {
	var floor int64
	err := tx.QueryRowContext(ctx, `
		SELECT MAX(s.created_at, COALESCE((SELECT MAX(m.created_at) + 1 FROM chat_messages m WHERE m.session_id = s.id), 0))
		FROM chat_sessions s
		WHERE s.id = ? AND s.user_id = ?
	`, sessionID, s.userID).Scan(&floor)
	if err == sql.ErrNoRows {
		return types.Message{}, conversation.ErrSessionNotFound
	}
	if err != nil {
		return types.Message{}, errors.Wrap(err, "querying session")
	}

	createdAt := max(micros(s.db.now()), floor)
	msg := types.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    s.userID,
		Content:   content,
		IsAI:      isAI,
		CreatedAt: fromMicros(createdAt),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, user_id, content, is_ai, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, sessionID, s.userID, content, isAI, createdAt)
	if err != nil {
		return types.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (s *SessionStore) UpdateSessionLastMessageAt(ctx context.Context, sessionID string, at time.Time) error {
	return s.update(ctx, sessionID, "last_message_at", micros(at))
}

// UpdateSessionCategory stores category, or NULL for an empty one.
func (s *SessionStore) UpdateSessionCategory(ctx context.Context, sessionID, category string) error {
	return s.update(ctx, sessionID, "category", sql.NullString{String: category, Valid: category != ""})
}

func (s *SessionStore) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	return s.update(ctx, sessionID, "title", title)
}

func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM chat_messages WHERE session_id = ? AND user_id = ?
		`, sessionID, s.userID); err != nil {
			return errors.Wrap(err, "deleting messages")
		}
		res, err := tx.ExecContext(ctx, `
			DELETE FROM chat_sessions WHERE id = ? AND user_id = ?
		`, sessionID, s.userID)
		if err != nil {
			return errors.Wrap(err, "deleting session")
		}
		return expectAffected(res)
	})
}

// update sets one column of the user's session. column is never user input.
func (s *SessionStore) update(ctx context.Context, sessionID, column string, value interface{}) error {
	res, err := s.db.db.ExecContext(ctx,
		"UPDATE chat_sessions SET "+column+" = ? WHERE id = ? AND user_id = ?",
		value, sessionID, s.userID)
	if err != nil {
		return errors.Wrapf(err, "updating %s", column)
	}
	return expectAffected(res)
}

func (s *SessionStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]types.Message, error) {
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	defer rows.Close()

	messages := []types.Message{}
	for rows.Next() {
		var (
			msg       types.Message
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Content, &msg.IsAI, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scanning message row")
		}
		msg.UserID = s.userID
		msg.CreatedAt = fromMicros(createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating message rows")
	}
	return messages, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return conversation.ErrSessionNotFound
	}
	return nil
}
