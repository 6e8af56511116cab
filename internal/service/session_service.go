package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"civicportal/internal/metrics"
	"civicportal/internal/models"
	"civicportal/internal/repository"
	"civicportal/internal/security"
)

// SessionManager issues opaque session tokens and resolves them back to a
// user. Expiry is checked on every read; there is no sliding renewal.
type SessionManager struct {
	sessions *repository.SessionRepository
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewSessionManager(sessions *repository.SessionRepository, ttl time.Duration, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		ttl:      ttl,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create persists a session for userID and returns the raw token. Only the
// token hash is stored.
func (m *SessionManager) Create(ctx context.Context, userID string) (string, models.Session, error) {
	token, hash, err := security.GenerateSessionToken()
	if err != nil {
		return "", models.Session{}, fmt.Errorf("generate session token: %w", err)
	}

	now := m.now()
	session := models.Session{
		UserID:    userID,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := m.sessions.Create(ctx, hash, session); err != nil {
		return "", models.Session{}, err
	}
	return token, session, nil
}

// Resolve returns the session behind token. Expired sessions are deleted and
// reported as repository.ErrSessionNotFound.
func (m *SessionManager) Resolve(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, repository.ErrSessionNotFound
	}

	hash := security.HashSessionToken(token)
	session, err := m.sessions.GetByHash(ctx, hash)
	if err != nil {
		return models.Session{}, err
	}

	if session.ExpiredAt(m.now()) {
		if err := m.sessions.DeleteByHash(ctx, hash); err != nil {
			m.log.Warn().Err(err).Str("user_id", session.UserID).Msg("delete expired session failed")
		}
		return models.Session{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (m *SessionManager) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.sessions.DeleteByHash(ctx, security.HashSessionToken(token))
}

// DeleteForUser removes every session owned by userID.
func (m *SessionManager) DeleteForUser(ctx context.Context, userID string) (int, error) {
	return m.deleteWhere(ctx, func(s models.Session) bool {
		return s.UserID == userID
	})
}

// Reap deletes every session that has expired.
func (m *SessionManager) Reap(ctx context.Context) (int, error) {
	now := m.now()
	n, err := m.deleteWhere(ctx, func(s models.Session) bool {
		return s.ExpiredAt(now)
	})
	metrics.SessionsReaped.Add(float64(n))
	return n, err
}

func (m *SessionManager) deleteWhere(ctx context.Context, match func(models.Session) bool) (int, error) {
	stored, err := m.sessions.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	var (
		deleted int
		errs    []error
	)
	for _, s := range stored {
		if !match(s.Session) {
			continue
		}
		if err := m.sessions.DeleteByHash(ctx, s.TokenHash); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}
