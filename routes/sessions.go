package routes

import (
	"net/http"

	"clementus360/clinic-assistant/handlers"
)

// RegisterSessionRoutes registers all session-related routes
func RegisterSessionRoutes(mux *http.ServeMux, h *handlers.Handler) {
	mux.HandleFunc("GET /sessions", h.GetSessions)
	mux.HandleFunc("POST /sessions", h.CreateSession)
	mux.HandleFunc("GET /sessions/grouped", h.GetGroupedSessions)
	mux.HandleFunc("PUT /sessions/current", h.SetCurrentSession)

	mux.HandleFunc("GET /sessions/{id}", h.GetSession)
	mux.HandleFunc("PATCH /sessions/{id}/category", h.UpdateSessionCategory)
	mux.HandleFunc("PATCH /sessions/{id}/title", h.UpdateSessionTitle)
	mux.HandleFunc("DELETE /sessions/{id}", h.DeleteSession)
}
