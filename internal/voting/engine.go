// Package voting keeps the upvote/downvote counters on a suggestion in step
// with the individual vote records. Every mutation reads and writes the vote
// and the suggestion inside one store transaction.
package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"civicportal/internal/kv"
	"civicportal/internal/metrics"
	"civicportal/internal/models"
	"civicportal/internal/repository"
)

var ErrInvalidVoteType = errors.New("invalid vote type")

type Outcome string

const (
	OutcomeCast     Outcome = "cast"
	OutcomeFlipped  Outcome = "flipped"
	OutcomeRepeated Outcome = "repeated"
	OutcomeRemoved  Outcome = "removed"
	OutcomeNoop     Outcome = "noop"
)

type Result struct {
	Vote       models.Vote
	Suggestion models.Suggestion
	Outcome    Outcome
}

type Engine struct {
	store kv.Store
	votes *repository.VoteRepository
	log   zerolog.Logger
	now   func() time.Time
}

func NewEngine(store kv.Store, log zerolog.Logger) *Engine {
	return &Engine{
		store: store,
		votes: repository.NewVoteRepository(store),
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Cast records vote as the user's only vote on the suggestion.
//
// A first vote adds one to the matching counter, a vote of the other type
// moves one from the old counter to the new one, and repeating the current
// vote changes nothing. Votes on a missing suggestion fail with
// repository.ErrSuggestionNotFound and leave no vote behind.
func (e *Engine) Cast(ctx context.Context, vote models.Vote) (Result, error) {
	if !vote.Type.Valid() {
		return Result{}, ErrInvalidVoteType
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = e.now()
	}

	voteKey := repository.VoteKey(vote.UserID, vote.SuggestionID)
	suggestionKey := repository.SuggestionKey(vote.SuggestionID)

	var res Result
	err := e.store.Update(ctx, func(tx kv.Tx) error {
		res = Result{}

		existing, err := repository.LoadVote(ctx, tx, vote.UserID, vote.SuggestionID)
		hasPrior := err == nil
		if err != nil && !errors.Is(err, repository.ErrVoteNotFound) {
			return err
		}

		suggestion, err := repository.LoadSuggestion(ctx, tx, vote.SuggestionID)
		if err != nil {
			return err
		}

		switch {
		case !hasPrior:
			adjust(&suggestion, vote.Type, 1)
			res.Outcome = OutcomeCast
		case existing.Type != vote.Type:
			adjust(&suggestion, vote.Type, 1)
			adjust(&suggestion, existing.Type, -1)
			res.Outcome = OutcomeFlipped
		default:
			res = Result{Vote: existing, Suggestion: suggestion, Outcome: OutcomeRepeated}
			return nil
		}

		suggestion.UpdatedAt = e.now()
		if err := repository.PutVote(tx, vote); err != nil {
			return err
		}
		if err := repository.PutSuggestion(tx, suggestion); err != nil {
			return err
		}
		res.Vote = vote
		res.Suggestion = suggestion
		return nil
	}, voteKey, suggestionKey)
	if err != nil {
		return Result{}, err
	}

	metrics.VotesTotal.WithLabelValues(string(res.Outcome), string(vote.Type)).Inc()
	return res, nil
}

// Remove deletes the user's vote and takes it off the suggestion's counters.
// Removing a vote that does not exist is a no-op.
func (e *Engine) Remove(ctx context.Context, userID, suggestionID string) (Result, error) {
	voteKey := repository.VoteKey(userID, suggestionID)
	suggestionKey := repository.SuggestionKey(suggestionID)

	var res Result
	err := e.store.Update(ctx, func(tx kv.Tx) error {
		res = Result{Outcome: OutcomeNoop}

		existing, err := repository.LoadVote(ctx, tx, userID, suggestionID)
		if err != nil {
			if errors.Is(err, repository.ErrVoteNotFound) {
				return nil
			}
			return err
		}
		repository.DeleteVote(tx, userID, suggestionID)
		res = Result{Vote: existing, Outcome: OutcomeRemoved}

		suggestion, err := repository.LoadSuggestion(ctx, tx, suggestionID)
		if errors.Is(err, repository.ErrSuggestionNotFound) {
			return nil
		} else if err != nil {
			return err
		}

		adjust(&suggestion, existing.Type, -1)
		suggestion.UpdatedAt = e.now()
		if err := repository.PutSuggestion(tx, suggestion); err != nil {
			return err
		}
		res.Suggestion = suggestion
		return nil
	}, voteKey, suggestionKey)
	if err != nil {
		return Result{}, err
	}

	if res.Outcome == OutcomeRemoved {
		metrics.VotesTotal.WithLabelValues(string(res.Outcome), string(res.Vote.Type)).Inc()
	}
	return res, nil
}

func (e *Engine) Get(ctx context.Context, userID, suggestionID string) (models.Vote, error) {
	return e.votes.Get(ctx, userID, suggestionID)
}

func (e *Engine) ListForUser(ctx context.Context, userID string) ([]models.Vote, error) {
	return e.votes.ListByUser(ctx, userID)
}

// Recount rebuilds both counters of a suggestion from its vote records.
// Every vote mutation also writes the suggestion key, so a concurrent vote
// makes this transaction retry instead of committing a stale count.
func (e *Engine) Recount(ctx context.Context, suggestionID string) (models.Suggestion, error) {
	var out models.Suggestion
	err := e.store.Update(ctx, func(tx kv.Tx) error {
		suggestion, err := repository.LoadSuggestion(ctx, tx, suggestionID)
		if err != nil {
			return err
		}
		votes, err := repository.ListSuggestionVotes(ctx, tx, suggestionID)
		if err != nil {
			return fmt.Errorf("list votes: %w", err)
		}

		up, down := 0, 0
		for _, v := range votes {
			switch v.Type {
			case models.VoteUp:
				up++
			case models.VoteDown:
				down++
			}
		}

		out = suggestion
		if up == suggestion.Upvotes && down == suggestion.Downvotes {
			return nil
		}

		e.log.Warn().
			Str("suggestion_id", suggestionID).
			Int("upvotes_stored", suggestion.Upvotes).
			Int("upvotes_counted", up).
			Int("downvotes_stored", suggestion.Downvotes).
			Int("downvotes_counted", down).
			Msg("vote counters drifted, repairing")

		suggestion.Upvotes = up
		suggestion.Downvotes = down
		suggestion.UpdatedAt = e.now()
		if err := repository.PutSuggestion(tx, suggestion); err != nil {
			return err
		}
		out = suggestion
		return nil
	}, repository.SuggestionKey(suggestionID))
	if err != nil {
		return models.Suggestion{}, err
	}
	return out, nil
}

// adjust moves the counter for t by delta, never below zero.
func adjust(s *models.Suggestion, t models.VoteType, delta int) {
	switch t {
	case models.VoteUp:
		s.Upvotes = max(0, s.Upvotes+delta)
	case models.VoteDown:
		s.Downvotes = max(0, s.Downvotes+delta)
	}
}
