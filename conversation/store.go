package conversation

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/types"
)

// Store is the in-memory cache of one user's sessions.
//
// The cache lock is never held across a remote call. Mutations replace the
// affected session entry with a fresh copy, and readers only ever receive
// deep copies, so a reader never observes a half-applied update.
type Store struct {
	durable DurableStore
	userID  string

	mu       sync.RWMutex
	sessions []types.Session
	current  string
	loaded   bool
	err      error
	loading  map[string]int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore returns an empty Store for userID backed by durable.
func NewStore(userID string, durable DurableStore) *Store {
	return &Store{
		durable: durable,
		userID:  userID,
		loading: make(map[string]int),
		locks:   make(map[string]*sync.Mutex),
	}
}

// UserID returns the user this store belongs to.
func (s *Store) UserID() string {
	return s.userID
}

// ListSessions reloads every session from the durable store, most recently
// active first, and replaces the cache. On failure the previous cache is kept.
func (s *Store) ListSessions(ctx context.Context) ([]types.Session, error) {
	sessions, err := s.durable.ListSessions(ctx)
	if err != nil {
		return nil, s.fail(OpListSessions, "", err)
	}

	for i := range sessions {
		normalize(&sessions[i])
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastMessageAt.After(sessions[j].LastMessageAt)
	})

	s.mu.Lock()
	s.sessions = sessions
	s.loaded = true
	s.err = nil
	if s.current != "" && s.indexOf(s.current) < 0 {
		s.current = ""
	}
	s.mu.Unlock()

	return s.Sessions(), nil
}

// CreateSession creates an empty session remotely, puts it at the front of
// the cache and selects it.
func (s *Store) CreateSession(ctx context.Context, title string) (string, error) {
	session, err := s.durable.CreateSession(ctx, title)
	if err != nil {
		return "", s.fail(OpCreateSession, "", err)
	}
	session.Messages = []types.Message{}
	normalize(&session)

	s.mu.Lock()
	s.sessions = append([]types.Session{session}, s.sessions...)
	s.current = session.ID
	s.mu.Unlock()

	config.Logger.WithFields(logrus.Fields{"user_id": s.userID, "session_id": session.ID}).Debug("Session created")
	return session.ID, nil
}

// AppendMessage stores a message remotely and, once confirmed, appends it to
// the session and advances LastMessageAt. Appends to one session are
// serialized, so they complete in the order they were issued.
func (s *Store) AppendMessage(ctx context.Context, sessionID, content string, isAI bool) (types.Message, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if !s.has(sessionID) {
		return types.Message{}, s.fail(OpAppendMessage, sessionID, ErrSessionNotFound)
	}

	var (
		msg     types.Message
		err     error
		touched bool
	)
	if appender, ok := s.durable.(TransactionalAppender); ok {
		msg, err = appender.AppendMessage(ctx, sessionID, content, isAI)
		touched = true
	} else {
		msg, err = s.durable.InsertMessage(ctx, sessionID, content, isAI)
	}
	if err != nil {
		return types.Message{}, s.fail(OpAppendMessage, sessionID, err)
	}

	s.mu.Lock()
	idx := s.indexOf(sessionID)
	if idx < 0 {
		// Deleted while the insert was in flight.
		s.mu.Unlock()
		return msg, nil
	}
	updated := s.sessions[idx]
	updated.Messages = insertChronological(updated.Messages, msg)
	updated.LastMessageAt = updated.Messages[len(updated.Messages)-1].CreatedAt
	if updated.LastMessageAt.Before(updated.CreatedAt) {
		updated.LastMessageAt = updated.CreatedAt
	}
	s.sessions[idx] = updated
	lastMessageAt := updated.LastMessageAt
	s.mu.Unlock()

	if !touched {
		if err := s.durable.UpdateSessionLastMessageAt(ctx, sessionID, lastMessageAt); err != nil {
			config.Logger.WithFields(logrus.Fields{
				"user_id":    s.userID,
				"session_id": sessionID,
			}).Warn("Failed to persist last_message_at: ", err)
		}
	}

	return msg, nil
}

// SetCurrentSession selects the active session. An empty id clears the
// selection. It never touches the durable store.
func (s *Store) SetCurrentSession(sessionID string) {
	s.mu.Lock()
	s.current = sessionID
	s.mu.Unlock()
}

// UpdateSessionCategory sets the session's category remotely, then locally.
// An empty category marks the session uncategorized.
func (s *Store) UpdateSessionCategory(ctx context.Context, sessionID, category string) error {
	category = strings.TrimSpace(category)
	if !s.has(sessionID) {
		return s.fail(OpUpdateCategory, sessionID, ErrSessionNotFound)
	}
	if err := s.durable.UpdateSessionCategory(ctx, sessionID, category); err != nil {
		return s.fail(OpUpdateCategory, sessionID, err)
	}
	s.replace(sessionID, func(session *types.Session) {
		session.Category = category
	})
	return nil
}

// RenameSession changes the session title remotely, then locally.
func (s *Store) RenameSession(ctx context.Context, sessionID, title string) error {
	if !s.has(sessionID) {
		return s.fail(OpRenameSession, sessionID, ErrSessionNotFound)
	}
	if err := s.durable.UpdateSessionTitle(ctx, sessionID, title); err != nil {
		return s.fail(OpRenameSession, sessionID, err)
	}
	s.replace(sessionID, func(session *types.Session) {
		session.Title = title
	})
	return nil
}

// DeleteSession removes the session remotely, then from the cache.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if !s.has(sessionID) {
		return s.fail(OpDeleteSession, sessionID, ErrSessionNotFound)
	}
	if err := s.durable.DeleteSession(ctx, sessionID); err != nil {
		return s.fail(OpDeleteSession, sessionID, err)
	}

	s.mu.Lock()
	if idx := s.indexOf(sessionID); idx >= 0 {
		next := make([]types.Session, 0, len(s.sessions)-1)
		next = append(next, s.sessions[:idx]...)
		next = append(next, s.sessions[idx+1:]...)
		s.sessions = next
	}
	if s.current == sessionID {
		s.current = ""
	}
	s.mu.Unlock()

	s.locksMu.Lock()
	delete(s.locks, sessionID)
	s.locksMu.Unlock()
	return nil
}

// LoadSession reloads the messages of one cached session.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (types.Session, error) {
	if !s.has(sessionID) {
		return types.Session{}, s.fail(OpLoadSession, sessionID, ErrSessionNotFound)
	}
	messages, err := s.durable.ListMessages(ctx, sessionID)
	if err != nil {
		return types.Session{}, s.fail(OpLoadSession, sessionID, err)
	}
	sortMessages(messages)

	var loaded types.Session
	ok := s.replace(sessionID, func(session *types.Session) {
		session.Messages = messages
		normalize(session)
		loaded = session.Clone()
	})
	if !ok {
		return types.Session{}, s.fail(OpLoadSession, sessionID, ErrSessionNotFound)
	}
	return loaded, nil
}

// Sessions returns a snapshot of the cache in its current order.
func (s *Store) Sessions() []types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Session, len(s.sessions))
	for i, session := range s.sessions {
		out[i] = session.Clone()
	}
	return out
}

// Session returns a snapshot of one cached session.
func (s *Store) Session(sessionID string) (types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(sessionID)
	if idx < 0 {
		return types.Session{}, false
	}
	return s.sessions[idx].Clone(), true
}

func (s *Store) CurrentSessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentSession returns the selected session, if any is selected and cached.
func (s *Store) CurrentSession() (types.Session, bool) {
	id := s.CurrentSessionID()
	if id == "" {
		return types.Session{}, false
	}
	return s.Session(id)
}

// Loaded reports whether ListSessions has succeeded at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Err returns the last SyncError, cleared by the next successful ListSessions.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Categories returns the distinct categories of the cached sessions in
// first-occurrence order.
func (s *Store) Categories() []string {
	grouping := GroupByCategory(s.Sessions())
	names := make([]string, len(grouping.Categories))
	for i, group := range grouping.Categories {
		names[i] = group.Name
	}
	return names
}

// Loading reports whether a conversation turn is in flight for the session.
func (s *Store) Loading(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[sessionID] > 0
}

// busy reports whether any turn is in flight.
func (s *Store) busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.loading) > 0
}

func (s *Store) beginLoading(sessionID string) {
	s.mu.Lock()
	s.loading[sessionID]++
	s.mu.Unlock()
}

func (s *Store) endLoading(sessionID string) {
	s.mu.Lock()
	if s.loading[sessionID] <= 1 {
		delete(s.loading, sessionID)
	} else {
		s.loading[sessionID]--
	}
	s.mu.Unlock()
}

func (s *Store) fail(op, sessionID string, err error) error {
	syncErr := &SyncError{Op: op, SessionID: sessionID, Err: err}

	s.mu.Lock()
	s.err = syncErr
	s.mu.Unlock()

	config.Logger.WithFields(logrus.Fields{
		"user_id":    s.userID,
		"session_id": sessionID,
		"op":         op,
	}).Warn("Conversation sync failed: ", err)
	return syncErr
}

func (s *Store) has(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(sessionID) >= 0
}

// indexOf must be called with mu held.
func (s *Store) indexOf(sessionID string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			return i
		}
	}
	return -1
}

// replace applies fn to a copy of the session and swaps the copy in.
func (s *Store) replace(sessionID string, fn func(*types.Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(sessionID)
	if idx < 0 {
		return false
	}
	updated := s.sessions[idx].Clone()
	fn(&updated)
	s.sessions[idx] = updated
	return true
}

func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// insertChronological returns a new slice with msg placed after every
// message that is not later than it.
func insertChronological(messages []types.Message, msg types.Message) []types.Message {
	pos := len(messages)
	for pos > 0 && messages[pos-1].CreatedAt.After(msg.CreatedAt) {
		pos--
	}
	out := make([]types.Message, 0, len(messages)+1)
	out = append(out, messages[:pos]...)
	out = append(out, msg)
	out = append(out, messages[pos:]...)
	return out
}

func sortMessages(messages []types.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

// normalize restores the session invariants after data arrives from the
// durable store: messages are chronological and LastMessageAt matches the
// last message, never earlier than CreatedAt.
func normalize(session *types.Session) {
	if session.Messages == nil {
		session.Messages = []types.Message{}
	}
	sortMessages(session.Messages)
	if n := len(session.Messages); n > 0 {
		session.LastMessageAt = session.Messages[n-1].CreatedAt
	}
	if session.LastMessageAt.IsZero() || session.LastMessageAt.Before(session.CreatedAt) {
		session.LastMessageAt = session.CreatedAt
	}
}
