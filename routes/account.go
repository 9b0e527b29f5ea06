package routes

import (
	"net/http"

	"clementus360/clinic-assistant/handlers"
)

// RegisterAccountRoutes registers usage and sign-out routes
func RegisterAccountRoutes(mux *http.ServeMux, h *handlers.Handler) {
	mux.HandleFunc("GET /usage", h.GetUsage)
	mux.HandleFunc("POST /signout", h.SignOut)
}
