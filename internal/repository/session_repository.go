package repository

import (
	"context"
	"errors"

	"civicportal/internal/kv"
	"civicportal/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores sessions under the hash of their token; the raw
// token never reaches the store.
type SessionRepository struct {
	store kv.Store
}

func NewSessionRepository(store kv.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

func (r *SessionRepository) Create(ctx context.Context, tokenHash string, session models.Session) error {
	data, err := encode(session)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, SessionKey(tokenHash), data)
}

func (r *SessionRepository) GetByHash(ctx context.Context, tokenHash string) (models.Session, error) {
	return load[models.Session](ctx, r.store, SessionKey(tokenHash), ErrSessionNotFound)
}

func (r *SessionRepository) DeleteByHash(ctx context.Context, tokenHash string) error {
	return r.store.Delete(ctx, SessionKey(tokenHash))
}

type StoredSession struct {
	TokenHash string
	models.Session
}

func (r *SessionRepository) List(ctx context.Context) ([]StoredSession, error) {
	entries, err := r.store.List(ctx, SessionsPrefix)
	if err != nil {
		return nil, err
	}

	sessions := make([]StoredSession, 0, len(entries))
	for _, e := range entries {
		s, err := decode[models.Session](e.Value)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, StoredSession{
			TokenHash: sessionHashFromKey(e.Key),
			Session:   s,
		})
	}
	return sessions, nil
}
