package routes

import (
	"net/http"

	"clementus360/clinic-assistant/handlers"
	"clementus360/clinic-assistant/middleware"
)

// HealthPath is served without authentication.
const HealthPath = "/health"

// RegisterAllRoutes registers all application routes
func RegisterAllRoutes(mux *http.ServeMux, h *handlers.Handler) {
	mux.HandleFunc("GET "+HealthPath, h.Health)
	RegisterChatRoutes(mux, h)
	RegisterSessionRoutes(mux, h)
	RegisterAccountRoutes(mux, h)
}

// NewRouter returns the full API: routes behind CORS, request logging,
// per-address rate limiting when limiter is set, and authentication.
// Rejected tokens count against the caller's rate limit.
func NewRouter(h *handlers.Handler, auth middleware.Authenticator, limiter *middleware.RateLimiter) http.Handler {
	mux := http.NewServeMux()
	RegisterAllRoutes(mux, h)

	chain := []func(http.Handler) http.Handler{
		middleware.CORSMiddleware,
		middleware.LoggingMiddleware,
	}
	if limiter != nil {
		chain = append(chain, limiter.Middleware)
	}
	chain = append(chain, middleware.AuthMiddleware(auth, HealthPath))
	return middleware.Chain(chain...)(mux)
}
