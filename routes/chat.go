package routes

import (
	"net/http"

	"clementus360/clinic-assistant/handlers"
)

// RegisterChatRoutes registers all chat-related routes
func RegisterChatRoutes(mux *http.ServeMux, h *handlers.Handler) {
	mux.HandleFunc("POST /chat", h.Chat)
	mux.HandleFunc("GET /chat", h.GetMessages)
	mux.HandleFunc("POST /consent-forms/generate", h.GenerateConsentForm)
}
