package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"civicportal/internal/kv"
	"civicportal/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepository struct {
	store kv.Store
	now   clock
}

func NewUserRepository(store kv.Store) *UserRepository {
	return &UserRepository{store: store, now: utcNow}
}

type NewUser struct {
	Email        string
	Name         string
	ProfileImage string
	PasswordHash string
}

// Create stores a new, unapproved user. The email index is written in the
// same transaction, so two sign-ups with one email cannot both succeed.
func (r *UserRepository) Create(ctx context.Context, in NewUser) (models.User, error) {
	user := models.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		ProfileImage: in.ProfileImage,
		PasswordHash: in.PasswordHash,
		IsAdmin:      false,
		IsApproved:   false,
		IsBlocked:    false,
		CreatedAt:    r.now(),
	}

	data, err := encode(user)
	if err != nil {
		return models.User{}, err
	}

	emailKey := userEmailKey(user.Email)
	err = r.store.Update(ctx, func(tx kv.Tx) error {
		if _, err := tx.Get(ctx, emailKey); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		tx.Set(UserKey(user.ID), data)
		tx.Set(emailKey, []byte(user.ID))
		return nil
	}, emailKey, UserKey(user.ID))
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	return load[models.User](ctx, r.store, UserKey(id), ErrUserNotFound)
}

// FindByEmail matches the stored email exactly; no case folding is applied.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	id, err := r.store.Get(ctx, userEmailKey(email))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	user, err := r.GetByID(ctx, string(id))
	if err != nil {
		return models.User{}, err
	}
	if user.Email != email {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, patch models.UserPatch) (models.User, error) {
	var updated models.User
	err := r.store.Update(ctx, func(tx kv.Tx) error {
		user, err := load[models.User](ctx, tx, UserKey(id), ErrUserNotFound)
		if err != nil {
			return err
		}
		patch.Apply(&user)

		data, err := encode(user)
		if err != nil {
			return err
		}
		tx.Set(UserKey(id), data)
		updated = user
		return nil
	}, UserKey(id))
	if err != nil {
		return models.User{}, err
	}
	return updated, nil
}

// List scans the whole users collection; cost grows with the number of users.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	entries, err := r.store.List(ctx, UsersPrefix)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.User](entries)
}
