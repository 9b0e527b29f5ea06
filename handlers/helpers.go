package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/types"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, types.ErrorResponse{
		Success:      false,
		ErrorMessage: message,
	})
}

// writeStoreError maps a conversation store failure to a response. Unknown
// sessions are 404; remote failures are 502 with message.
func writeStoreError(w http.ResponseWriter, err error, message string) {
	var syncErr *conversation.SyncError
	switch {
	case conversation.IsNotFound(err):
		writeError(w, "Session not found", http.StatusNotFound)
	case errors.As(err, &syncErr):
		writeError(w, message, http.StatusBadGateway)
	default:
		writeError(w, message, http.StatusInternalServerError)
	}
}

// decodeBody decodes a JSON body into dst. An empty body leaves dst as is
// when optional is set.
func decodeBody(r *http.Request, dst any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	return err
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
