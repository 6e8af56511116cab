package service

import (
	"github.com/rs/zerolog"

	"civicportal/internal/config"
	"civicportal/internal/kv"
	"civicportal/internal/notify"
	"civicportal/internal/repository"
	"civicportal/internal/voting"
)

// Services wires every service over one store. Binaries and tests build it
// the same way.
type Services struct {
	Users       *repository.UserRepository
	Suggestions *repository.SuggestionRepository
	Sessions    *SessionManager
	Auth        *AuthService
	OAuth       *OAuthService
	Submissions *SuggestionService
	Votes       *voting.Engine
	Admin       *AdminService
}

// New builds the services. notifier and archive may be nil, which disables
// emails and dossier archiving respectively.
func New(cfg *config.AppConfig, store kv.Store, notifier notify.Notifier, archive Archiver, log zerolog.Logger) *Services {
	users := repository.NewUserRepository(store)
	suggestions := repository.NewSuggestionRepository(store)
	sessions := NewSessionManager(repository.NewSessionRepository(store), cfg.Security.SessionTTL, log)
	votes := voting.NewEngine(store, log)
	auth := NewAuthService(users, sessions, log)
	composer := notify.NewComposer(cfg.Notify.From, cfg.Notify.LawmakerAddress, cfg.Notify.PlatformName)

	return &Services{
		Users:       users,
		Suggestions: suggestions,
		Sessions:    sessions,
		Auth:        auth,
		OAuth:       NewOAuthService(cfg.OAuth.Google, cfg.Security, users, auth, log),
		Submissions: NewSuggestionService(suggestions, users, log),
		Votes:       votes,
		Admin:       NewAdminService(users, suggestions, sessions, votes, notifier, composer, archive, log),
	}
}
