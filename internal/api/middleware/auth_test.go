package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/session"
)

type fakeResolver struct {
	sessions map[string]session.Context
	err      error
	calls    []string
}

func (f *fakeResolver) Resolve(ctx context.Context, sessionID string) (session.Resolution, error) {
	f.calls = append(f.calls, sessionID)
	if f.err != nil {
		return session.Unresolved(), f.err
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return session.Resolved(session.Anonymous()), nil
	}
	return session.Resolved(s), nil
}

func newTestResolver() *fakeResolver {
	return &fakeResolver{sessions: map[string]session.Context{
		"sid-customer": {IsAuthenticated: true, Role: session.RoleCustomer, UserID: "user-123"},
		"sid-admin":    {IsAuthenticated: true, Role: session.RoleAdmin, UserID: "admin-1"},
	}}
}

// capture runs the request through mw and records the resolution seen by the
// inner handler.
func capture(mw func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, *session.Resolution) {
	var seen *session.Resolution
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := session.FromContext(r.Context())
		seen = &res
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)
	return rec, seen
}

func withSession(req *http.Request, res session.Resolution) *http.Request {
	return req.WithContext(session.NewContext(req.Context(), res))
}

// ============================================
// Session Middleware Tests
// ============================================

func TestSession_ValidCookie(t *testing.T) {
	resolver := newTestResolver()
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sid-customer"})

	rec, seen := capture(Session(resolver), req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.True(t, seen.Resolved)
	assert.True(t, seen.Context.IsAuthenticated)
	assert.Equal(t, "user-123", seen.Context.UserID)
	assert.Equal(t, []string{"sid-customer"}, resolver.calls)
}

func TestSession_NoCookie(t *testing.T) {
	resolver := newTestResolver()
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)

	_, seen := capture(Session(resolver), req)

	require.NotNil(t, seen)
	assert.True(t, seen.Resolved)
	assert.False(t, seen.Context.IsAuthenticated)
	assert.Empty(t, resolver.calls)
}

func TestSession_UnknownCookieIsCleared(t *testing.T) {
	resolver := newTestResolver()
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sid-gone"})

	rec, seen := capture(Session(resolver), req)

	require.NotNil(t, seen)
	assert.False(t, seen.Context.IsAuthenticated)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestSession_LookupFailureIsUnresolved(t *testing.T) {
	resolver := newTestResolver()
	resolver.err = errors.New("redis down")
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sid-customer"})

	rec, seen := capture(Session(resolver), req)

	require.NotNil(t, seen)
	assert.False(t, seen.Resolved)
	assert.Empty(t, rec.Result().Cookies())
}

// ============================================
// Guard Tests
// ============================================

func TestGuard(t *testing.T) {
	customer := session.Context{IsAuthenticated: true, Role: session.RoleCustomer, UserID: "u1"}
	admin := session.Context{IsAuthenticated: true, Role: session.RoleAdmin, UserID: "a1"}

	tests := []struct {
		name         string
		res          session.Resolution
		requireAdmin bool
		wantStatus   int
	}{
		{"anonymous", session.Resolved(session.Anonymous()), false, http.StatusUnauthorized},
		{"customer", session.Resolved(customer), false, http.StatusOK},
		{"customer on admin route", session.Resolved(customer), true, http.StatusForbidden},
		{"admin on admin route", session.Resolved(admin), true, http.StatusOK},
		{"pending", session.Unresolved(), false, http.StatusAccepted},
		{"pending admin", session.Unresolved(), true, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withSession(httptest.NewRequest(http.MethodGet, "/api/orders", nil), tt.res)

			rec, seen := capture(Guard(tt.requireAdmin), req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, seen != nil)
		})
	}
}

func TestGuard_DeniedJSONCarriesRedirect(t *testing.T) {
	req := withSession(httptest.NewRequest(http.MethodGet, "/api/orders", nil), session.Resolved(session.Anonymous()))

	rec, _ := capture(Guard(false), req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized","redirect":"/login"}`, rec.Body.String())
}

func TestGuard_BrowserIsRedirected(t *testing.T) {
	req := withSession(httptest.NewRequest(http.MethodGet, "/account", nil), session.Resolved(session.Anonymous()))
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	rec, seen := capture(Guard(false), req)

	assert.Nil(t, seen)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestGuard_PendingRendersNothing(t *testing.T) {
	req := withSession(httptest.NewRequest(http.MethodGet, "/api/orders", nil), session.Unresolved())

	rec, _ := capture(Guard(false), req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

// ============================================
// Helper Tests
// ============================================

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	assert.Empty(t, ExtractToken(req))

	req.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", ExtractToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(req))
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	RequestLogger(zap.NewNop())(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec = httptest.NewRecorder()
	RequestLogger(zap.NewNop())(handler).ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}
