// Package kv defines the key-value store the portal keeps its records in.
//
// Backends only need primary-key reads, writes, deletes and prefix listing,
// plus Update, which applies a group of writes atomically relative to the
// keys it declares.
package kv

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("kv: key not found")
	ErrConflict = errors.New("kv: transaction conflict")
)

type Entry struct {
	Key   string
	Value []byte
}

// Tx is handed to Update callbacks. Reads see the committed state of the
// store overlaid with the writes already buffered in the same Tx.
type Tx interface {
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Entry, error)
	Set(key string, value []byte)
	Delete(key string)
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Entry, error)
	// Update runs fn and commits its buffered writes atomically. The commit
	// fails if any of keys changed concurrently; fn may therefore be invoked
	// more than once and must keep its side effects inside tx.
	Update(ctx context.Context, fn func(tx Tx) error, keys ...string) error
	Ping(ctx context.Context) error
}

// Key joins key segments with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// writeSet buffers Tx writes in order. A nil value marks a delete.
type writeSet struct {
	order  []string
	values map[string][]byte
}

func newWriteSet() *writeSet {
	return &writeSet{values: make(map[string][]byte)}
}

func (w *writeSet) set(key string, value []byte) {
	if _, ok := w.values[key]; !ok {
		w.order = append(w.order, key)
	}
	if value == nil {
		value = []byte{}
	}
	w.values[key] = value
}

func (w *writeSet) delete(key string) {
	if _, ok := w.values[key]; !ok {
		w.order = append(w.order, key)
	}
	w.values[key] = nil
}

// lookup reports whether the key was written in this Tx, and its value.
func (w *writeSet) lookup(key string) (value []byte, deleted bool, ok bool) {
	v, ok := w.values[key]
	if !ok {
		return nil, false, false
	}
	return v, v == nil, true
}

func (w *writeSet) overlay(prefix string, entries []Entry) []Entry {
	if len(w.order) == 0 {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Key] = struct{}{}
		v, deleted, ok := w.lookup(e.Key)
		switch {
		case !ok:
			out = append(out, e)
		case !deleted:
			out = append(out, Entry{Key: e.Key, Value: v})
		}
	}
	for _, key := range w.order {
		if _, ok := seen[key]; ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		if v := w.values[key]; v != nil {
			out = append(out, Entry{Key: key, Value: v})
		}
	}
	return out
}
