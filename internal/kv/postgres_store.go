package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps records in the kv_entries table. Update takes
// transaction-scoped advisory locks on the declared keys, so keys that do not
// exist yet are serialized too.
type PostgresStore struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewPostgresStore(pool *pgxpool.Pool, namespace string) *PostgresStore {
	return &PostgresStore{pool: pool, namespace: namespace}
}

func (s *PostgresStore) key(k string) string {
	return s.namespace + k
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, s.pool, key)
}

func (s *PostgresStore) get(ctx context.Context, q pgQuerier, key string) ([]byte, error) {
	const query = `SELECT value FROM kv_entries WHERE key = $1`

	var value []byte
	if err := q.QueryRow(ctx, query, s.key(key)).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, nil
}

const upsertQuery = `
	INSERT INTO kv_entries (key, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key)
	DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
`

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, upsertQuery, s.key(key), value); err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_entries WHERE key = $1`
	if _, err := s.pool.Exec(ctx, query, s.key(key)); err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	return s.list(ctx, s.pool, prefix)
}

func (s *PostgresStore) list(ctx context.Context, q pgQuerier, prefix string) ([]Entry, error) {
	const query = `SELECT key, value FROM kv_entries WHERE starts_with(key, $1)`

	rows, err := q.Query(ctx, query, s.key(prefix))
	if err != nil {
		return nil, fmt.Errorf("postgres list %s: %w", prefix, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		e.Key = strings.TrimPrefix(e.Key, s.namespace)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error, keys ...string) error {
	locked := make([]string, len(keys))
	for i, k := range keys {
		locked[i] = s.key(k)
	}
	// fixed lock order keeps two updates over the same keys from deadlocking
	sort.Strings(locked)

	return pgx.BeginFunc(ctx, s.pool, func(ptx pgx.Tx) error {
		for _, k := range locked {
			if _, err := ptx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, k); err != nil {
				return fmt.Errorf("postgres lock %s: %w", k, err)
			}
		}

		tx := &pgTx{store: s, ptx: ptx, writes: newWriteSet()}
		if err := fn(tx); err != nil {
			return err
		}

		for _, k := range tx.writes.order {
			var err error
			if v := tx.writes.values[k]; v != nil {
				_, err = ptx.Exec(ctx, upsertQuery, s.key(k), v)
			} else {
				_, err = ptx.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, s.key(k))
			}
			if err != nil {
				return fmt.Errorf("postgres write %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type pgTx struct {
	store  *PostgresStore
	ptx    pgx.Tx
	writes *writeSet
}

func (t *pgTx) Get(ctx context.Context, key string) ([]byte, error) {
	if v, deleted, ok := t.writes.lookup(key); ok {
		if deleted {
			return nil, ErrNotFound
		}
		return v, nil
	}
	return t.store.get(ctx, t.ptx, key)
}

func (t *pgTx) List(ctx context.Context, prefix string) ([]Entry, error) {
	entries, err := t.store.list(ctx, t.ptx, prefix)
	if err != nil {
		return nil, err
	}
	return t.writes.overlay(prefix, entries), nil
}

func (t *pgTx) Set(key string, value []byte) {
	t.writes.set(key, value)
}

func (t *pgTx) Delete(key string) {
	t.writes.delete(key)
}
