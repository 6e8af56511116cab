package repository

import (
	"context"
	"errors"
	"strings"

	"civicportal/internal/kv"
	"civicportal/internal/models"
)

var ErrVoteNotFound = errors.New("vote not found")

// VoteRepository is the read side of the votes collection. Writes go through
// the voting engine so counters move together with the vote records.
type VoteRepository struct {
	store kv.Store
}

func NewVoteRepository(store kv.Store) *VoteRepository {
	return &VoteRepository{store: store}
}

func (r *VoteRepository) Get(ctx context.Context, userID, suggestionID string) (models.Vote, error) {
	return LoadVote(ctx, r.store, userID, suggestionID)
}

// ListByUser is a prefix scan over the user's vote keys.
func (r *VoteRepository) ListByUser(ctx context.Context, userID string) ([]models.Vote, error) {
	entries, err := r.store.List(ctx, UserVotesPrefix(userID))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Vote](entries)
}

// ListBySuggestion scans every vote in the store.
func (r *VoteRepository) ListBySuggestion(ctx context.Context, suggestionID string) ([]models.Vote, error) {
	entries, err := r.store.List(ctx, VotesPrefix)
	if err != nil {
		return nil, err
	}
	return votesForSuggestion(entries, suggestionID)
}

func LoadVote(ctx context.Context, r reader, userID, suggestionID string) (models.Vote, error) {
	return load[models.Vote](ctx, r, VoteKey(userID, suggestionID), ErrVoteNotFound)
}

func PutVote(tx kv.Tx, v models.Vote) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	tx.Set(VoteKey(v.UserID, v.SuggestionID), data)
	return nil
}

func DeleteVote(tx kv.Tx, userID, suggestionID string) {
	tx.Delete(VoteKey(userID, suggestionID))
}

// ListSuggestionVotes returns the votes on a suggestion as seen from inside tx.
func ListSuggestionVotes(ctx context.Context, tx kv.Tx, suggestionID string) ([]models.Vote, error) {
	entries, err := tx.List(ctx, VotesPrefix)
	if err != nil {
		return nil, err
	}
	return votesForSuggestion(entries, suggestionID)
}

func votesForSuggestion(entries []kv.Entry, suggestionID string) ([]models.Vote, error) {
	suffix := ":" + suggestionID
	matching := entries[:0]
	for _, e := range entries {
		if strings.HasSuffix(e.Key, suffix) {
			matching = append(matching, e)
		}
	}
	votes, err := decodeAll[models.Vote](matching)
	if err != nil {
		return nil, err
	}
	out := votes[:0]
	for _, v := range votes {
		if v.SuggestionID == suggestionID {
			out = append(out, v)
		}
	}
	return out, nil
}
