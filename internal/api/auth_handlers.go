package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/command"
	"github.com/example/storefront/internal/session"
	"github.com/example/storefront/internal/task"
)

// SessionResponse is the session state exposed to the client
type SessionResponse struct {
	session.Context
	Resolved bool `json:"resolved"`
}

// Login opens a session for an access token issued by the identity service.
// The token is read from the body, or from a bearer Authorization header.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var cmd command.Login
	if r.ContentLength != 0 {
		if !h.decode(w, r, &cmd) {
			return
		}
	}
	if cmd.AccessToken == "" {
		cmd.AccessToken = middleware.ExtractToken(r)
	}
	if cmd.AccessToken == "" {
		h.respondError(w, errors.Join(errBadBody, errors.New("access_token is required")))
		return
	}
	cmd.AnonymousCartID = anonymousCartID(r)

	s, err := h.cmdHandler.Login(r.Context(), cmd)
	if err != nil {
		h.respondError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    s.SessionID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	if cmd.AnonymousCartID != "" {
		h.clearCookie(w, middleware.CartCookie)
	}
	respondJSON(w, http.StatusOK, SessionResponse{Context: s, Resolved: true})
}

// GetSession returns the flags of the current session
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	res := session.FromContext(r.Context())
	status := http.StatusOK
	if !res.Resolved {
		status = http.StatusAccepted
	}
	respondJSON(w, status, SessionResponse{Context: res.Context, Resolved: res.Resolved})
}

// Logout clears the session. It always succeeds for the client.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	s, err := h.cmdHandler.Logout(r.Context(), command.Logout{Session: currentSession(r)})
	if errors.Is(err, task.ErrInFlight) {
		h.log.Debug("logout already in progress")
	}

	h.clearCookie(w, middleware.SessionCookie)
	respondJSON(w, http.StatusOK, SessionResponse{Context: s, Resolved: true})
	h.log.Info("session cleared", zap.Bool("was_authenticated", currentSession(r).IsAuthenticated))
}
