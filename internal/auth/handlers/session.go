package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"campus-map-server/internal/auth"
	"campus-map-server/internal/shared/cookies"
	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/shared/response"
)

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionHandler starts or renews an anonymous viewer session.
type SessionHandler struct {
	tokens *auth.TokenManager
}

func NewSessionHandler(tokens *auth.TokenManager) *SessionHandler {
	return &SessionHandler{tokens: tokens}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "session", "remote_addr", r.RemoteAddr)

	switch r.Method {
	case http.MethodPost:
		h.issue(w, r, logger)
	case http.MethodDelete:
		cookies.ClearSessionCookie(w)
		w.WriteHeader(http.StatusNoContent)
		logger.Info("Viewer session ended")
	default:
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
	}
}

func (h *SessionHandler) issue(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	// A still-valid token keeps its session so remembered state survives renewal.
	sessionID := ""
	if existing := cookies.SessionToken(r); existing != "" {
		if claims, err := h.tokens.Validate(existing); err == nil {
			sessionID = claims.SessionID
		} else {
			logger.Debug("Ignoring invalid session token", "error", err)
		}
	}

	token, claims, err := h.tokens.Issue(sessionID)
	if err != nil {
		response.Error(w, r, logger, errors.WrapInternal("failed to issue session token", err))
		return
	}

	cookies.SetSessionCookie(w, token)
	logger.Info("Viewer session issued",
		"session_id", claims.SessionID,
		"renewed", sessionID != "")

	response.Success(w, http.StatusOK, SessionResponse{
		SessionID: claims.SessionID,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}
