package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/types"
)

const usageLimitMessage = "You have reached the usage limit of your subscription. Please upgrade to continue."

// Chat runs one conversation turn. Without a session_id it starts a new
// session.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, "Missing message", http.StatusBadRequest)
		return
	}
	if req.SessionID != "" && !validSessionID(req.SessionID) {
		writeError(w, "Invalid session_id", http.StatusBadRequest)
		return
	}

	store, userID, ok := h.loadedStore(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := config.Logger.WithField("user_id", userID)

	if !h.allowQuery(ctx, userID) {
		writeError(w, usageLimitMessage, http.StatusPaymentRequired)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		var err error
		sessionID, err = store.CreateSession(ctx, config.DefaultSessionTitle)
		if err != nil {
			writeStoreError(w, err, "Could not manage session")
			return
		}
	}
	session, found := store.Session(sessionID)
	if !found {
		writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	store.SetCurrentSession(sessionID)

	result, err := conversation.NewConversation(store, h.Generator(session.Messages)).Turn(ctx, sessionID, message)
	if err != nil {
		logger.WithField("session_id", sessionID).Error("Chat turn failed: ", err)
		writeStoreError(w, err, "Could not save message")
		return
	}

	if !result.Fallback {
		h.recordUsage(ctx, userID, message, result.AIMessage.Content)
	}

	writeJSON(w, http.StatusOK, types.ChatResponse{
		Success:     true,
		UserMessage: &result.UserMessage,
		AIResponse:  &result.AIMessage,
		Fallback:    result.Fallback,
		SessionID:   sessionID,
	})
}

// GetMessages returns one session's messages, reloaded from the durable store.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, "Missing session_id", http.StatusBadRequest)
		return
	}
	if !validSessionID(sessionID) {
		writeError(w, "Invalid session_id", http.StatusBadRequest)
		return
	}

	store, _, ok := h.loadedStore(w, r)
	if !ok {
		return
	}
	session, err := store.LoadSession(r.Context(), sessionID)
	if err != nil {
		writeStoreError(w, err, "Could not fetch messages")
		return
	}

	writeJSON(w, http.StatusOK, types.GetMessagesResponse{
		Success:  true,
		Messages: session.Messages,
	})
}

// allowQuery checks the caller's quota. A failing usage store never blocks
// a turn.
func (h *Handler) allowQuery(ctx context.Context, userID string) bool {
	if h.Usage == nil {
		return true
	}
	allowed, err := h.Usage.CanMakeQuery(ctx, userID)
	if err != nil {
		config.Logger.WithField("user_id", userID).Warn("Failed to check usage, allowing query: ", err)
		return true
	}
	return allowed
}

func (h *Handler) recordUsage(ctx context.Context, userID string, texts ...string) {
	if h.Usage == nil {
		return
	}
	if err := h.Usage.Record(context.WithoutCancel(ctx), userID, texts...); err != nil {
		config.Logger.WithFields(logrus.Fields{"user_id": userID}).Warn("Failed to record usage: ", err)
	}
}
