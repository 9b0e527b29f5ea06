package handlers

import (
	"net/http"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/middleware"
	"clementus360/clinic-assistant/types"
)

func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if h.Usage == nil {
		writeError(w, "Usage tracking is not enabled", http.StatusNotFound)
		return
	}

	stats, err := h.Usage.Usage(r.Context(), userID)
	if err != nil {
		config.Logger.WithField("user_id", userID).Error("Failed to fetch usage: ", err)
		writeError(w, "Could not fetch usage", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, types.UsageResponse{
		Success: true,
		Usage:   stats,
	})
}
