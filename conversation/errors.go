package conversation

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is the cause of a SyncError for session ids that are not in the local cache.
var ErrSessionNotFound = errors.New("session not found")

// Operation names carried by SyncError.
const (
	OpListSessions   = "list_sessions"
	OpCreateSession  = "create_session"
	OpAppendMessage  = "append_message"
	OpUpdateCategory = "update_session_category"
	OpRenameSession  = "rename_session"
	OpDeleteSession  = "delete_session"
	OpLoadSession    = "load_session"
)

// SyncError is the single error kind surfaced by Store operations.
type SyncError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *SyncError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a SyncError caused by an unknown session.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
