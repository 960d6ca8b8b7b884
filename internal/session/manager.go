package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/logger"
)

var ErrInvalidCredentials = errors.New("invalid access token")

// TokenVerifier validates access tokens issued by the identity service
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthAPI is the identity service's logout endpoint
type AuthAPI interface {
	Logout(ctx context.Context, token string) error
}

// Manager owns the session lifecycle: set on login, resolved per request,
// cleared on logout.
type Manager struct {
	store    store.SessionStore
	verifier TokenVerifier
	authAPI  AuthAPI
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewManager(ss store.SessionStore, verifier TokenVerifier, authAPI AuthAPI, ttl time.Duration) *Manager {
	return &Manager{
		store:    ss,
		verifier: verifier,
		authAPI:  authAPI,
		ttl:      ttl,
		log:      logger.Named("session"),
		now:      time.Now,
	}
}

func contextFromClaims(sid, token string, claims *auth.Claims, expiresAt time.Time) Context {
	return Context{
		IsAuthenticated: true,
		Role:            ParseRole(claims.Role),
		UserID:          claims.UserID,
		Email:           claims.Email,
		ExpiresAt:       expiresAt,
		SessionID:       sid,
		Token:           token,
	}
}

// Login validates accessToken and opens a session for it. The session ends
// at the token's expiry or after the configured TTL, whichever is first.
func (m *Manager) Login(ctx context.Context, accessToken string) (Context, error) {
	claims, err := m.verifier.Verify(accessToken)
	if err != nil {
		return Anonymous(), fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	if exp := claims.Expiry(); !exp.IsZero() && exp.Before(expiresAt) {
		expiresAt = exp
	}

	rec := &store.SessionRecord{
		ID:        uuid.New().String(),
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      string(ParseRole(claims.Role)),
		Token:     accessToken,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := m.store.Set(ctx, rec); err != nil {
		return Anonymous(), fmt.Errorf("failed to store session: %w", err)
	}

	m.log.Info("session opened", zap.String("user_id", rec.UserID), zap.String("role", rec.Role))
	return contextFromClaims(rec.ID, accessToken, claims, expiresAt), nil
}

// Resolve looks up sessionID. Unknown or expired sessions and tokens that no
// longer validate resolve to Anonymous. A store failure leaves the session
// unresolved.
func (m *Manager) Resolve(ctx context.Context, sessionID string) (Resolution, error) {
	if sessionID == "" {
		return Resolved(Anonymous()), nil
	}

	rec, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return Resolved(Anonymous()), nil
	}
	if err != nil {
		return Unresolved(), fmt.Errorf("failed to load session: %w", err)
	}
	if rec.Expired(m.now()) {
		m.drop(ctx, sessionID)
		return Resolved(Anonymous()), nil
	}

	claims, err := m.verifier.Verify(rec.Token)
	if err != nil {
		m.log.Debug("session token rejected", zap.String("user_id", rec.UserID), zap.Error(err))
		m.drop(ctx, sessionID)
		return Resolved(Anonymous()), nil
	}

	return Resolved(contextFromClaims(rec.ID, rec.Token, claims, rec.ExpiresAt)), nil
}

// Logout ends sessionID. The identity service is told on a best-effort
// basis; its failures are logged and the session is cleared regardless.
func (m *Manager) Logout(ctx context.Context, sessionID string) Context {
	if sessionID == "" {
		return Anonymous()
	}

	rec, err := m.store.Get(ctx, sessionID)
	if err == nil && rec.Token != "" && m.authAPI != nil {
		if err := m.authAPI.Logout(ctx, rec.Token); err != nil {
			m.log.Warn("logout request failed", zap.String("user_id", rec.UserID), zap.Error(err))
		}
	}

	m.drop(ctx, sessionID)
	return Anonymous()
}

func (m *Manager) drop(ctx context.Context, sessionID string) {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		m.log.Warn("failed to delete session", zap.Error(err))
	}
}
