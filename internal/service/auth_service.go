package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"civicportal/internal/models"
	"civicportal/internal/repository"
	"civicportal/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotApproved    = errors.New("user not approved")
	ErrUserBlocked        = errors.New("user blocked")
	ErrInvalidInput       = errors.New("invalid input")
)

type AuthService struct {
	users    *repository.UserRepository
	sessions *SessionManager
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	users *repository.UserRepository,
	sessions *SessionManager,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SignUpInput struct {
	Email    string
	Password string
	Name     string
}

// SignUp creates an unapproved account. The user cannot sign in until an
// administrator approves it, so no session is issued here.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (models.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if input.Email == "" || input.Password == "" || input.Name == "" {
		return models.User{}, fmt.Errorf("%w: email, password and name are required", ErrInvalidInput)
	}
	if err := security.CheckPasswordStrength(input.Password); err != nil {
		return models.User{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.Create(ctx, repository.NewUser{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user signed up")
	return user, nil
}

type SignInResult struct {
	User    models.User
	Token   string
	Session models.Session
}

// SignIn checks the password first, then the approval gate, and only then
// records lastLogin and opens a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return SignInResult{}, ErrInvalidCredentials
		}
		return SignInResult{}, err
	}
	if !user.HasPassword() {
		return SignInResult{}, ErrInvalidCredentials
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return SignInResult{}, ErrInvalidCredentials
	}

	return s.openSession(ctx, user, models.UserPatch{})
}

// openSession applies the approval gate to user, stamps lastLogin together
// with any extra profile changes and issues a session.
func (s *AuthService) openSession(ctx context.Context, user models.User, patch models.UserPatch) (SignInResult, error) {
	if err := CheckAccess(user); err != nil {
		return SignInResult{}, err
	}

	now := s.now()
	patch.LastLogin = &now
	user, err := s.users.Update(ctx, user.ID, patch)
	if err != nil {
		return SignInResult{}, fmt.Errorf("record login: %w", err)
	}

	token, session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return SignInResult{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user signed in")
	return SignInResult{User: user, Token: token, Session: session}, nil
}

func (s *AuthService) SignOut(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// CurrentUser resolves a session token to its user. Missing or expired
// sessions, and sessions of users that no longer exist, yield
// repository.ErrSessionNotFound.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (models.User, error) {
	session, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, repository.ErrSessionNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// CheckAccess is the approval gate: blocked users are denied regardless of
// approval, unapproved users are denied until an administrator approves them.
func CheckAccess(user models.User) error {
	if user.IsBlocked {
		return ErrUserBlocked
	}
	if !user.IsApproved {
		return ErrUserNotApproved
	}
	return nil
}
