package repository

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"civicportal/internal/kv"
	"civicportal/internal/models"
)

const (
	DefaultLimit = 10
)

var (
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrInvalidSort        = errors.New("invalid sort option")
)

type SuggestionRepository struct {
	store kv.Store
	now   clock
}

func NewSuggestionRepository(store kv.Store) *SuggestionRepository {
	return &SuggestionRepository{store: store, now: utcNow}
}

type NewSuggestion struct {
	Title              string
	Description        string
	Category           string
	Attachments        []models.Attachment
	AuthorID           string
	AuthorName         string
	AuthorProfileImage string
}

func (r *SuggestionRepository) Create(ctx context.Context, in NewSuggestion) (models.Suggestion, error) {
	now := r.now()
	suggestion := models.Suggestion{
		ID:                 uuid.NewString(),
		Title:              in.Title,
		Description:        in.Description,
		Category:           in.Category,
		Attachments:        in.Attachments,
		AuthorID:           in.AuthorID,
		AuthorName:         in.AuthorName,
		AuthorProfileImage: in.AuthorProfileImage,
		Upvotes:            0,
		Downvotes:          0,
		Status:             models.SuggestionStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	data, err := encode(suggestion)
	if err != nil {
		return models.Suggestion{}, err
	}
	if err := r.store.Set(ctx, SuggestionKey(suggestion.ID), data); err != nil {
		return models.Suggestion{}, err
	}
	return suggestion, nil
}

func (r *SuggestionRepository) GetByID(ctx context.Context, id string) (models.Suggestion, error) {
	return LoadSuggestion(ctx, r.store, id)
}

// Update merges patch into the stored suggestion and stamps UpdatedAt.
func (r *SuggestionRepository) Update(ctx context.Context, id string, patch models.SuggestionPatch) (models.Suggestion, error) {
	return r.Mutate(ctx, id, func(s *models.Suggestion) error {
		patch.Apply(s)
		return nil
	})
}

// Mutate runs fn on the current suggestion inside a transaction and stores
// the result with a fresh UpdatedAt. An error from fn aborts without writing.
func (r *SuggestionRepository) Mutate(ctx context.Context, id string, fn func(s *models.Suggestion) error) (models.Suggestion, error) {
	var updated models.Suggestion
	err := r.store.Update(ctx, func(tx kv.Tx) error {
		suggestion, err := LoadSuggestion(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&suggestion); err != nil {
			return err
		}
		suggestion.UpdatedAt = r.now()

		if err := PutSuggestion(tx, suggestion); err != nil {
			return err
		}
		updated = suggestion
		return nil
	}, SuggestionKey(id))
	if err != nil {
		return models.Suggestion{}, err
	}
	return updated, nil
}

func (r *SuggestionRepository) ListAll(ctx context.Context) ([]models.Suggestion, error) {
	entries, err := r.store.List(ctx, SuggestionsPrefix)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Suggestion](entries)
}

// List loads the full collection and filters, sorts and pages it in memory.
func (r *SuggestionRepository) List(ctx context.Context, q models.SuggestionQuery) ([]models.Suggestion, error) {
	less, err := sortFunc(q.Sort)
	if err != nil {
		return nil, err
	}

	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := filterSuggestions(all, q.Filters)
	sort.Slice(filtered, func(i, j int) bool {
		return less(filtered[i], filtered[j])
	})
	return paginate(filtered, q.Limit, q.Offset), nil
}

func filterSuggestions(in []models.Suggestion, f models.SuggestionFilters) []models.Suggestion {
	search := strings.ToLower(f.Search)

	out := in[:0]
	for _, s := range in {
		if f.Category != "" && s.Category != f.Category {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.AuthorID != "" && s.AuthorID != f.AuthorID {
			continue
		}
		if f.PublicOnly && !s.Public() {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(s.Title), search) &&
			!strings.Contains(strings.ToLower(s.Description), search) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func sortFunc(by models.SuggestionSort) (func(a, b models.Suggestion) bool, error) {
	switch by {
	case "", models.SortNewest:
		return func(a, b models.Suggestion) bool { return a.CreatedAt.After(b.CreatedAt) }, nil
	case models.SortOldest:
		return func(a, b models.Suggestion) bool { return a.CreatedAt.Before(b.CreatedAt) }, nil
	case models.SortMostUpvoted:
		return func(a, b models.Suggestion) bool { return a.Upvotes > b.Upvotes }, nil
	case models.SortMostDownvoted:
		return func(a, b models.Suggestion) bool { return a.Downvotes > b.Downvotes }, nil
	default:
		return nil, ErrInvalidSort
	}
}

func paginate(in []models.Suggestion, limit, offset int) []models.Suggestion {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(in) {
		return []models.Suggestion{}
	}
	end := min(offset+limit, len(in))
	return in[offset:end]
}

// LoadSuggestion reads a suggestion from a store or from inside a transaction.
func LoadSuggestion(ctx context.Context, r reader, id string) (models.Suggestion, error) {
	return load[models.Suggestion](ctx, r, SuggestionKey(id), ErrSuggestionNotFound)
}

// PutSuggestion buffers a suggestion write in tx.
func PutSuggestion(tx kv.Tx, s models.Suggestion) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	tx.Set(SuggestionKey(s.ID), data)
	return nil
}
