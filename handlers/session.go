package handlers

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/types"
)

// GetSessions reloads the caller's sessions from the durable store.
func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	store, _, ok := h.store(w, r)
	if !ok {
		return
	}

	sessions, err := store.ListSessions(r.Context())
	if err != nil {
		writeStoreError(w, err, "Failed to fetch sessions")
		return
	}

	writeJSON(w, http.StatusOK, types.GetSessionsResponse{
		Success:          true,
		Sessions:         sessions,
		CurrentSessionID: store.CurrentSessionID(),
	})
}

// GetGroupedSessions groups the cached sessions by category.
func (h *Handler) GetGroupedSessions(w http.ResponseWriter, r *http.Request) {
	store, _, ok := h.loadedStore(w, r)
	if !ok {
		return
	}

	grouping := conversation.GroupByCategory(store.Sessions())
	resp := types.GroupedSessionsResponse{
		Success:       true,
		Categories:    make([]types.CategoryGroupResponse, 0, len(grouping.Categories)),
		Uncategorized: grouping.Uncategorized,
	}
	for _, group := range grouping.Categories {
		resp.Categories = append(resp.Categories, types.CategoryGroupResponse{
			Name:     group.Name,
			Sessions: group.Sessions,
		})
	}
	if resp.Uncategorized == nil {
		resp.Uncategorized = []types.Session{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req types.SessionRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = config.DefaultSessionTitle
	}

	store, userID, ok := h.loadedStore(w, r)
	if !ok {
		return
	}

	id, err := store.CreateSession(r.Context(), title)
	if err != nil {
		writeStoreError(w, err, "Could not create session")
		return
	}
	session, _ := store.Session(id)

	config.Logger.WithFields(logrus.Fields{"user_id": userID, "session_id": id}).Info("Session created")
	writeJSON(w, http.StatusCreated, types.SessionResponse{
		Success: true,
		Session: session,
	})
}

// GetSession reloads one session's messages.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}
	store, _, ok := h.loadedStore(w, r)
	if !ok {
		return
	}

	session, err := store.LoadSession(r.Context(), sessionID)
	if err != nil {
		writeStoreError(w, err, "Could not fetch session")
		return
	}

	writeJSON(w, http.StatusOK, types.SessionResponse{
		Success: true,
		Session: session,
		Loading: store.Loading(sessionID),
	})
}

func (h *Handler) UpdateSessionCategory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}

	var req types.CategoryRequest
	if err := decodeBody(r, &req, false); err != nil || strings.TrimSpace(req.Category) == "" {
		config.Logger.Warn("Invalid or missing category in request body: ", err)
		writeError(w, "Invalid or missing category", http.StatusBadRequest)
		return
	}

	store, _, ok := h.loadedStore(w, r)
	if !ok {
		return
	}
	if err := store.UpdateSessionCategory(r.Context(), sessionID, strings.TrimSpace(req.Category)); err != nil {
		writeStoreError(w, err, "Failed to update session category")
		return
	}

	h.writeSession(w, store, sessionID)
}

func (h *Handler) UpdateSessionTitle(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}

	var req types.SessionRequest
	if err := decodeBody(r, &req, false); err != nil || strings.TrimSpace(req.Title) == "" {
		config.Logger.Warn("Invalid or missing title in request body: ", err)
		writeError(w, "Invalid or missing title", http.StatusBadRequest)
		return
	}

	store, _, ok := h.loadedStore(w, r)
	if !ok {
		return
	}
	if err := store.RenameSession(r.Context(), sessionID, strings.TrimSpace(req.Title)); err != nil {
		writeStoreError(w, err, "Failed to update session")
		return
	}

	h.writeSession(w, store, sessionID)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}
	store, userID, ok := h.loadedStore(w, r)
	if !ok {
		return
	}

	if err := store.DeleteSession(r.Context(), sessionID); err != nil {
		writeStoreError(w, err, "Failed to delete session")
		return
	}

	config.Logger.WithFields(logrus.Fields{"user_id": userID, "session_id": sessionID}).Info("Session deleted")
	writeJSON(w, http.StatusOK, types.StatusResponse{Success: true, Status: "deleted"})
}

// SetCurrentSession selects the active session; an empty id clears it.
func (h *Handler) SetCurrentSession(w http.ResponseWriter, r *http.Request) {
	var req types.CurrentSessionRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)

	store, _, ok := h.loadedStore(w, r)
	if !ok {
		return
	}

	if sessionID != "" {
		if _, found := store.Session(sessionID); !found {
			writeError(w, "Session not found", http.StatusNotFound)
			return
		}
	}
	store.SetCurrentSession(sessionID)

	writeJSON(w, http.StatusOK, types.GetSessionsResponse{
		Success:          true,
		Sessions:         store.Sessions(),
		CurrentSessionID: store.CurrentSessionID(),
	})
}

func (h *Handler) writeSession(w http.ResponseWriter, store *conversation.Store, sessionID string) {
	session, found := store.Session(sessionID)
	if !found {
		writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, types.SessionResponse{
		Success: true,
		Session: session,
	})
}

func sessionIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		config.Logger.Warn("Missing session ID in request")
		writeError(w, "Missing session ID", http.StatusBadRequest)
		return "", false
	}
	if !validSessionID(sessionID) {
		writeError(w, "Invalid session ID", http.StatusBadRequest)
		return "", false
	}
	return sessionID, true
}
