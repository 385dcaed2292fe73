package api //nolint:revive // package name is intentional

import (
	"net/http"
)

// RegisterRoutes registers all API routes on the given mux.
func (h *ClientHandler) RegisterRoutes(mux *http.ServeMux) {
	// Health
	mux.HandleFunc("GET /health/live", h.Live)
	mux.HandleFunc("GET /health/ready", h.Ready)

	// Conversation
	mux.HandleFunc("POST /v1/chat", h.Chat)

	// Operator session management
	mux.HandleFunc("GET /v1/sessions", h.ListSessions)
	mux.HandleFunc("GET /v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.DeleteSession)
}

// RouteInfo describes an API route.
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// GetRoutes returns information about all registered routes.
func GetRoutes() []RouteInfo {
	return []RouteInfo{
		{Method: "GET", Path: "/health/live", Description: "Liveness probe", Category: "health"},
		{Method: "GET", Path: "/health/ready", Description: "Readiness probe, fails while the session store is down", Category: "health"},
		{Method: "POST", Path: "/v1/chat", Description: "Process one user message", Category: "chat"},
		{Method: "GET", Path: "/v1/sessions", Description: "List stored sessions", Category: "session"},
		{Method: "GET", Path: "/v1/sessions/{id}", Description: "Get one session", Category: "session"},
		{Method: "DELETE", Path: "/v1/sessions/{id}", Description: "Clear one session", Category: "session"},
	}
}
