package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicportal/internal/kv"
)

// Collections are key prefixes inside the store.
const (
	UsersPrefix       = "users:"
	SuggestionsPrefix = "suggestions:"
	VotesPrefix       = "votes:"
	SessionsPrefix    = "sessions:"

	userEmailIndexPrefix = "idx:user-email:"
)

func UserKey(id string) string {
	return UsersPrefix + id
}

func userEmailKey(email string) string {
	return userEmailIndexPrefix + email
}

func SuggestionKey(id string) string {
	return SuggestionsPrefix + id
}

func VoteKey(userID, suggestionID string) string {
	return VotesPrefix + kv.Key(userID, suggestionID)
}

func UserVotesPrefix(userID string) string {
	return VotesPrefix + userID + ":"
}

func SessionKey(tokenHash string) string {
	return SessionsPrefix + tokenHash
}

func sessionHashFromKey(key string) string {
	return strings.TrimPrefix(key, SessionsPrefix)
}

type clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

func decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode record: %w", err)
	}
	return v, nil
}

// reader is satisfied by both kv.Store and kv.Tx.
type reader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// load reads and decodes key, mapping a missing key to notFound.
func load[T any](ctx context.Context, r reader, key string, notFound error) (T, error) {
	data, err := r.Get(ctx, key)
	if err != nil {
		var zero T
		if errors.Is(err, kv.ErrNotFound) {
			return zero, notFound
		}
		return zero, err
	}
	return decode[T](data)
}

func decodeAll[T any](entries []kv.Entry) ([]T, error) {
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		v, err := decode[T](e.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
