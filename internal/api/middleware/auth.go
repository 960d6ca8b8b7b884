package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/guard"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/session"
)

// Cookie names
const (
	SessionCookie = "session_id"
	CartCookie    = "cart_id"
)

// SessionResolver looks up the session behind a session id
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (session.Resolution, error)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ExtractToken extracts a bearer token from the Authorization header
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Session resolves the session_id cookie and stores the resolution in the
// request context. Requests without a cookie are anonymous; a lookup failure
// leaves the session unresolved.
func Session(resolver SessionResolver) func(http.Handler) http.Handler {
	log := logger.Named("session")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := session.Resolved(session.Anonymous())
			if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
				resolved, err := resolver.Resolve(r.Context(), c.Value)
				if err != nil {
					log.Warn("session lookup failed", zap.Error(err))
				}
				res = resolved
				if res.Resolved && !res.Context.IsAuthenticated {
					clearCookie(w, SessionCookie)
				}
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), res)))
		})
	}
}

// Guard gates a route on the resolved session. Browsers are redirected to
// the login page; API clients get 401, or 403 when authenticated without the
// admin role. An unresolved session gets 202 and no body.
func Guard(requireAdmin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := session.FromContext(r.Context())
			d := guard.EvaluateResolution(res, requireAdmin)
			switch d.Outcome {
			case guard.Allow:
				next.ServeHTTP(w, r)
			case guard.Pending:
				w.WriteHeader(http.StatusAccepted)
			default:
				if wantsHTML(r) {
					http.Redirect(w, r, d.Location, http.StatusSeeOther)
					return
				}
				status, msg := http.StatusUnauthorized, "unauthorized"
				if res.Context.IsAuthenticated {
					status, msg = http.StatusForbidden, "forbidden"
				}
				respondJSON(w, status, map[string]string{"error": msg, "redirect": d.Location})
			}
		})
	}
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}
