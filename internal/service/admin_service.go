package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"civicportal/internal/models"
	"civicportal/internal/notify"
	"civicportal/internal/repository"
	"civicportal/internal/storage"
	"civicportal/internal/voting"
)

const dashboardListSize = 5

var (
	ErrInvalidStatus    = errors.New("invalid suggestion status")
	ErrAlreadyForwarded = errors.New("suggestion already forwarded")
	ErrNotForwardable   = errors.New("only approved suggestions can be forwarded")
)

// Archiver keeps a copy of every dossier sent to lawmakers.
type Archiver interface {
	Archive(ctx context.Context, d storage.Dossier) (string, error)
}

type AdminService struct {
	users       *repository.UserRepository
	suggestions *repository.SuggestionRepository
	sessions    *SessionManager
	votes       *voting.Engine
	notifier    notify.Notifier
	composer    *notify.Composer
	archive     Archiver
	log         zerolog.Logger
	now         func() time.Time
}

func NewAdminService(
	users *repository.UserRepository,
	suggestions *repository.SuggestionRepository,
	sessions *SessionManager,
	votes *voting.Engine,
	notifier notify.Notifier,
	composer *notify.Composer,
	archive Archiver,
	log zerolog.Logger,
) *AdminService {
	return &AdminService{
		users:       users,
		suggestions: suggestions,
		sessions:    sessions,
		votes:       votes,
		notifier:    notifier,
		composer:    composer,
		archive:     archive,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListUsers returns every user, newest first.
func (s *AdminService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

// ApproveUser grants access and emails the user the first time it happens.
func (s *AdminService) ApproveUser(ctx context.Context, id string) (models.User, error) {
	before, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	approved := true
	user, err := s.users.Update(ctx, id, models.UserPatch{IsApproved: &approved})
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("user_id", id).Msg("user approved")
	if !before.IsApproved {
		s.send(ctx, func() (notify.Message, error) { return s.composer.UserApproved(user) })
	}
	return user, nil
}

// SetBlocked blocks or unblocks a user. Blocking also ends every session the
// user holds.
func (s *AdminService) SetBlocked(ctx context.Context, id string, blocked bool) (models.User, error) {
	user, err := s.users.Update(ctx, id, models.UserPatch{IsBlocked: &blocked})
	if err != nil {
		return models.User{}, err
	}

	if blocked {
		n, err := s.sessions.DeleteForUser(ctx, id)
		if err != nil {
			return user, fmt.Errorf("revoke sessions: %w", err)
		}
		s.log.Info().Str("user_id", id).Int("sessions_revoked", n).Msg("user blocked")
	} else {
		s.log.Info().Str("user_id", id).Msg("user unblocked")
	}
	return user, nil
}

func (s *AdminService) SetAdmin(ctx context.Context, id string, admin bool) (models.User, error) {
	user, err := s.users.Update(ctx, id, models.UserPatch{IsAdmin: &admin})
	if err != nil {
		return models.User{}, err
	}
	s.log.Info().Str("user_id", id).Bool("is_admin", admin).Msg("admin flag changed")
	return user, nil
}

// SetSuggestionStatus moves a suggestion to status. Moving to sent forwards
// it; a suggestion that was already sent cannot change status again.
func (s *AdminService) SetSuggestionStatus(ctx context.Context, id string, status models.SuggestionStatus, actorID string) (models.Suggestion, error) {
	if !status.Valid() {
		return models.Suggestion{}, ErrInvalidStatus
	}
	if status == models.SuggestionStatusSent {
		return s.Forward(ctx, id, actorID)
	}

	var previous models.SuggestionStatus
	suggestion, err := s.suggestions.Mutate(ctx, id, func(sg *models.Suggestion) error {
		if sg.Status == models.SuggestionStatusSent {
			return ErrAlreadyForwarded
		}
		previous = sg.Status
		sg.Status = status
		return nil
	})
	if err != nil {
		return models.Suggestion{}, err
	}

	s.log.Info().
		Str("suggestion_id", id).
		Str("from", string(previous)).
		Str("to", string(status)).
		Str("actor_id", actorID).
		Msg("suggestion status changed")

	if status == models.SuggestionStatusApproved && previous != models.SuggestionStatusApproved {
		s.notifyAuthorApproved(ctx, suggestion)
	}
	return suggestion, nil
}

// Forward marks an approved suggestion as sent, emails it to the lawmakers'
// address and archives a dossier.
func (s *AdminService) Forward(ctx context.Context, id string, actorID string) (models.Suggestion, error) {
	suggestion, err := s.suggestions.Mutate(ctx, id, func(sg *models.Suggestion) error {
		switch sg.Status {
		case models.SuggestionStatusSent:
			return ErrAlreadyForwarded
		case models.SuggestionStatusApproved:
			sg.Status = models.SuggestionStatusSent
			return nil
		default:
			return ErrNotForwardable
		}
	})
	if err != nil {
		return models.Suggestion{}, err
	}

	s.log.Info().
		Str("suggestion_id", id).
		Int("upvotes", suggestion.Upvotes).
		Str("actor_id", actorID).
		Msg("suggestion forwarded")

	s.send(ctx, func() (notify.Message, error) { return s.composer.SuggestionForwarded(suggestion) })

	if s.archive != nil {
		key, err := s.archive.Archive(ctx, storage.Dossier{
			Suggestion:  suggestion,
			ForwardedBy: actorID,
			ForwardedAt: s.now(),
			Recipient:   s.composer.LawmakerAddress,
		})
		if err != nil {
			s.log.Error().Err(err).Str("suggestion_id", id).Msg("archive dossier failed")
		} else {
			s.log.Debug().Str("suggestion_id", id).Str("object", key).Msg("dossier archived")
		}
	}
	return suggestion, nil
}

// ForwardPopular forwards every approved suggestion with at least threshold
// upvotes. A threshold of zero or less disables it.
func (s *AdminService) ForwardPopular(ctx context.Context, threshold int, actorID string) (int, error) {
	if threshold <= 0 {
		return 0, nil
	}

	all, err := s.suggestions.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	forwarded := 0
	for _, sg := range all {
		if sg.Status != models.SuggestionStatusApproved || sg.Upvotes < threshold {
			continue
		}
		if _, err := s.Forward(ctx, sg.ID, actorID); err != nil {
			if errors.Is(err, ErrAlreadyForwarded) || errors.Is(err, ErrNotForwardable) {
				continue
			}
			return forwarded, fmt.Errorf("forward %s: %w", sg.ID, err)
		}
		forwarded++
	}
	return forwarded, nil
}

func (s *AdminService) Recount(ctx context.Context, id string) (models.Suggestion, error) {
	return s.votes.Recount(ctx, id)
}

type Dashboard struct {
	PendingUsers       []models.User       `json:"pendingUsers"`
	PendingSuggestions []models.Suggestion `json:"pendingSuggestions"`
	PopularSuggestions []models.Suggestion `json:"popularSuggestions"`
	TotalUsers         int                 `json:"totalUsers"`
}

func (s *AdminService) Dashboard(ctx context.Context) (Dashboard, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	pendingUsers := make([]models.User, 0)
	for _, u := range users {
		if !u.IsApproved && !u.IsBlocked {
			pendingUsers = append(pendingUsers, u)
		}
	}

	pending, err := s.suggestions.List(ctx, models.SuggestionQuery{
		Limit:   dashboardListSize,
		Filters: models.SuggestionFilters{Status: models.SuggestionStatusPending},
		Sort:    models.SortNewest,
	})
	if err != nil {
		return Dashboard{}, err
	}

	popular, err := s.suggestions.List(ctx, models.SuggestionQuery{
		Limit:   dashboardListSize,
		Filters: models.SuggestionFilters{Status: models.SuggestionStatusApproved},
		Sort:    models.SortMostUpvoted,
	})
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		PendingUsers:       pendingUsers,
		PendingSuggestions: pending,
		PopularSuggestions: popular,
		TotalUsers:         len(users),
	}, nil
}

func (s *AdminService) notifyAuthorApproved(ctx context.Context, suggestion models.Suggestion) {
	author, err := s.users.GetByID(ctx, suggestion.AuthorID)
	if err != nil {
		s.log.Warn().Err(err).Str("suggestion_id", suggestion.ID).Msg("load author for approval email failed")
		return
	}
	s.send(ctx, func() (notify.Message, error) { return s.composer.SuggestionApproved(author, suggestion) })
}

// send renders and queues a message. Failures are logged and never returned.
func (s *AdminService) send(ctx context.Context, build func() (notify.Message, error)) {
	if s.notifier == nil {
		return
	}
	msg, err := build()
	if err != nil {
		s.log.Error().Err(err).Msg("render notification failed")
		return
	}
	s.notifier.Notify(ctx, msg)
}
