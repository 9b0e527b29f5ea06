package handlers

import (
	"net/http"
	"strings"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/middleware"
	"clementus360/clinic-assistant/types"
)

// GenerateConsentForm drafts a consent form for the described treatment.
func (h *Handler) GenerateConsentForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if h.Consent == nil {
		writeError(w, "Consent form generation is not configured", http.StatusInternalServerError)
		return
	}

	var req types.ConsentFormRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, "Missing prompt", http.StatusBadRequest)
		return
	}

	form, err := h.Consent(r.Context(), req.Prompt)
	if err != nil {
		config.Logger.Error("Error generating form: ", err)
		writeError(w, config.ConsentFormErrorMessage, http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, types.ConsentFormResponse{
		Success: true,
		Form:    form,
	})
}
