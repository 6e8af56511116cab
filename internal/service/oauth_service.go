package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"civicportal/internal/config"
	"civicportal/internal/models"
	"civicportal/internal/repository"
	"civicportal/internal/security"
)

const providerGoogle = "google"

var (
	ErrOAuthDisabled  = errors.New("google login is not enabled")
	ErrOAuthExchange  = errors.New("oauth code exchange failed")
	ErrOAuthNoProfile = errors.New("oauth profile has no email")
)

// GoogleProfile is the subset of the userinfo response the portal uses.
type GoogleProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type OAuthService struct {
	cfg      config.GoogleOAuthConfig
	security config.SecurityConfig
	oauth    *oauth2.Config
	users    *repository.UserRepository
	auth     *AuthService
	log      zerolog.Logger
}

func NewOAuthService(
	cfg config.GoogleOAuthConfig,
	sec config.SecurityConfig,
	users *repository.UserRepository,
	auth *AuthService,
	log zerolog.Logger,
) *OAuthService {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	return &OAuthService{
		cfg:      cfg,
		security: sec,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		users: users,
		auth:  auth,
		log:   log,
	}
}

func (s *OAuthService) Enabled() bool {
	return s.cfg.Enabled
}

// AuthCodeURL returns the consent page URL carrying a signed state.
func (s *OAuthService) AuthCodeURL(redirectTo string) (string, error) {
	if !s.Enabled() {
		return "", ErrOAuthDisabled
	}
	state, err := security.GenerateState(s.security.StateSecret, providerGoogle, redirectTo, s.security.StateTTL)
	if err != nil {
		return "", err
	}
	return s.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

type CallbackResult struct {
	SignInResult
	RedirectTo string
}

// Callback completes a federated login: it verifies state, exchanges code
// for a token, fetches the profile, links or creates the user and then
// applies the same approval gate as password sign-in.
func (s *OAuthService) Callback(ctx context.Context, code, state string) (CallbackResult, error) {
	if !s.Enabled() {
		return CallbackResult{}, ErrOAuthDisabled
	}

	claims, err := security.ParseState(state, s.security.StateSecret, providerGoogle)
	if err != nil {
		return CallbackResult{}, err
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.log.Warn().Err(err).Str("provider", providerGoogle).Msg("oauth exchange failed")
		return CallbackResult{}, ErrOAuthExchange
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		return CallbackResult{}, err
	}

	user, patch, err := s.linkProfile(ctx, profile)
	if err != nil {
		return CallbackResult{}, err
	}

	res, err := s.auth.openSession(ctx, user, patch)
	if err != nil {
		return CallbackResult{}, err
	}
	return CallbackResult{SignInResult: res, RedirectTo: claims.RedirectTo}, nil
}

func (s *OAuthService) fetchProfile(ctx context.Context, token *oauth2.Token) (GoogleProfile, error) {
	client := s.oauth.Client(ctx, token)

	resp, err := client.Get(s.cfg.UserInfoURL)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return GoogleProfile{}, fmt.Errorf("userinfo returned status %d: %s", resp.StatusCode, string(body))
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return GoogleProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	profile.Email = strings.TrimSpace(profile.Email)
	if profile.Email == "" {
		return GoogleProfile{}, ErrOAuthNoProfile
	}
	return profile, nil
}

// linkProfile finds the user with the profile's email or creates an
// unapproved one. The returned patch refreshes the stored profile image.
func (s *OAuthService) linkProfile(ctx context.Context, profile GoogleProfile) (models.User, models.UserPatch, error) {
	var patch models.UserPatch

	user, err := s.users.FindByEmail(ctx, profile.Email)
	if err == nil {
		if profile.Picture != "" && profile.Picture != user.ProfileImage {
			patch.ProfileImage = &profile.Picture
		}
		return user, patch, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, patch, err
	}

	name := profile.Name
	if name == "" {
		name = profile.Email
	}
	user, err = s.users.Create(ctx, repository.NewUser{
		Email:        profile.Email,
		Name:         name,
		ProfileImage: profile.Picture,
	})
	if errors.Is(err, repository.ErrEmailTaken) {
		// a concurrent callback created the user first
		user, err = s.users.FindByEmail(ctx, profile.Email)
	}
	if err != nil {
		return models.User{}, patch, err
	}

	s.log.Info().Str("user_id", user.ID).Str("provider", providerGoogle).Msg("user created from federated login")
	return user, patch, nil
}
