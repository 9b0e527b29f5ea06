package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/middleware"
	"clementus360/clinic-assistant/types"
	"clementus360/clinic-assistant/usage"
)

// GeneratorFactory returns the generator for one turn, given the session's
// messages before the turn.
type GeneratorFactory func(history []types.Message) conversation.Generator

// ConsentDrafter drafts a consent form from a treatment description.
type ConsentDrafter func(ctx context.Context, request string) (types.ConsentForm, error)

// Handler serves the HTTP API on top of a per-user conversation Registry.
// Consent and Usage are optional.
type Handler struct {
	Registry  *conversation.Registry
	Generator GeneratorFactory
	Consent   ConsentDrafter
	Usage     *usage.Tracker
}

// store resolves the caller's Store. It writes the error response itself
// and returns false when the request cannot continue.
func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*conversation.Store, string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return nil, "", false
	}

	store, err := h.Registry.Get(userID)
	if err != nil {
		config.Logger.WithField("user_id", userID).Error("Failed to open conversation store: ", err)
		writeError(w, "Could not open conversation history", http.StatusInternalServerError)
		return nil, "", false
	}
	return store, userID, true
}

// loadedStore is store plus an initial ListSessions the first time a user's
// Store is used, so session ids from earlier runs resolve.
func (h *Handler) loadedStore(w http.ResponseWriter, r *http.Request) (*conversation.Store, string, bool) {
	store, userID, ok := h.store(w, r)
	if !ok {
		return nil, "", false
	}
	if store.Loaded() {
		return store, userID, true
	}
	if _, err := store.ListSessions(r.Context()); err != nil {
		writeStoreError(w, err, "Failed to fetch sessions")
		return nil, "", false
	}
	return store, userID, true
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.StatusResponse{Success: true, Status: "ok"})
}

// SignOut drops the caller's cached sessions.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	existed := h.Registry.Forget(userID)
	config.Logger.WithFields(logrus.Fields{"user_id": userID, "cached": existed}).Info("User signed out")
	writeJSON(w, http.StatusOK, types.StatusResponse{Success: true, Status: "signed_out"})
}
