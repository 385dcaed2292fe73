// Package api provides HTTP handlers for the support desk.
// It exposes the chat turn endpoint, operator session endpoints and health probes.
package api //nolint:revive // package name is intentional

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	supportdesk "github.com/blueberrycongee/supportdesk"
	"github.com/blueberrycongee/supportdesk/internal/metrics"
	"github.com/blueberrycongee/supportdesk/internal/observability"
	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// SessionList is the body of GET /v1/sessions.
type SessionList struct {
	Sessions []supportdesk.SessionSummary `json:"sessions"`
	Count    int                          `json:"count"`
}

// ClientHandler serves HTTP requests using supportdesk.Client, so the server
// runs exactly the same turn logic as library callers.
type ClientHandler struct {
	client          *supportdesk.Client
	logger          *slog.Logger
	maxBodySize     int64
	maxMessageRunes int
	limiter         *SessionRateLimiter
}

// ClientHandlerConfig contains configuration for ClientHandler.
type ClientHandlerConfig struct {
	MaxBodySize     int64               // Maximum request body size in bytes
	MaxMessageRunes int                 // Maximum message length in characters
	RateLimiter     *SessionRateLimiter // Optional per-session limiter
}

// NewClientHandler creates a new handler that wraps supportdesk.Client.
func NewClientHandler(client *supportdesk.Client, logger *slog.Logger, cfg *ClientHandlerConfig) *ClientHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &ClientHandler{
		client:          client,
		logger:          logger,
		maxBodySize:     DefaultMaxBodySize,
		maxMessageRunes: DefaultMaxMessageRunes,
	}
	if cfg != nil {
		if cfg.MaxBodySize > 0 {
			h.maxBodySize = cfg.MaxBodySize
		}
		if cfg.MaxMessageRunes > 0 {
			h.maxMessageRunes = cfg.MaxMessageRunes
		}
		h.limiter = cfg.RateLimiter
	}
	return h
}

// Chat handles POST /v1/chat requests.
func (h *ClientHandler) Chat(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent OOM
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize+1))
	defer func() { _ = r.Body.Close() }()
	if err != nil {
		h.writeError(w, r, supporterrors.NewInvalidInputError("failed to read request body"))
		return
	}
	if int64(len(body)) > h.maxBodySize {
		h.writeError(w, r, supporterrors.NewInvalidInputError("request body too large"))
		return
	}

	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, supporterrors.NewInvalidInputError("invalid JSON body"))
		return
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		h.writeError(w, r, supporterrors.NewInvalidInputError("message is required"))
		return
	}
	if utf8.RuneCountInString(text) > h.maxMessageRunes {
		h.writeError(w, r, supporterrors.NewInvalidInputError(
			"message must be at most "+strconv.Itoa(h.maxMessageRunes)+" characters"))
		return
	}

	if h.limiter != nil {
		key := addressKey(r.RemoteAddr)
		if req.SessionID != "" {
			key = sessionKey(req.SessionID)
		}
		if !h.limiter.Allow(key) {
			metrics.RateLimitedRequests.Inc()
			w.Header().Set("Retry-After", "60")
			h.writeError(w, r, supporterrors.NewRateLimitedError("rate limit exceeded"))
			return
		}
	}

	res := h.client.ProcessTurn(r.Context(), req.SessionID, text, req.UserID)
	h.writeJSON(w, http.StatusOK, res)
}

// ListSessions handles GET /v1/sessions.
func (h *ClientHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.client.Sessions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SessionList{Sessions: sessions, Count: len(sessions)})
}

// GetSession handles GET /v1/sessions/{id}.
func (h *ClientHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.client.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (h *ClientHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := h.client.ClearSession(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		h.writeError(w, r, supporterrors.NewUnknownSessionError(id))
		return
	}
	if h.limiter != nil {
		h.limiter.Remove(sessionKey(id))
	}
	w.WriteHeader(http.StatusNoContent)
}

// Live handles GET /health/live.
func (h *ClientHandler) Live(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready. It fails while the session store is unreachable.
func (h *ClientHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ready(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ClientHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError renders err in the error envelope. Unclassified errors are reported
// as internal errors without their text.
func (h *ClientHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var se *supporterrors.SupportError
	switch {
	case errors.As(err, &se):
	case errors.Is(err, supportdesk.ErrClosed):
		se = &supporterrors.SupportError{Type: supporterrors.TypeStoreUnavailable, Message: "service is shutting down"}
	default:
		se = supporterrors.NewInternalError("", err)
	}

	status := se.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"request_id", observability.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Message: se.Message,
			Type:    se.Type,
		},
	})
}
