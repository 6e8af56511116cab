package kv

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxRetries = 32
	scanBatch         = 500
	retryBackoffStep  = time.Millisecond
	retryBackoffMax   = 50 * time.Millisecond
)

// redisReader is the subset shared by *redis.Client and *redis.Tx.
type redisReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// RedisStore keeps every record as a plain string value. Update is built on
// WATCH/MULTI/EXEC and retried while the watched keys keep changing.
type RedisStore struct {
	client     *redis.Client
	namespace  string
	maxRetries int
}

func NewRedisStore(client *redis.Client, namespace string, maxRetries int) *RedisStore {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &RedisStore{
		client:     client,
		namespace:  namespace,
		maxRetries: maxRetries,
	}
}

func (s *RedisStore) key(k string) string {
	return s.namespace + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, s.client, key)
}

func (s *RedisStore) get(ctx context.Context, r redisReader, key string) ([]byte, error) {
	value, err := r.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	return s.list(ctx, s.client, prefix)
}

func (s *RedisStore) list(ctx context.Context, r redisReader, prefix string) ([]Entry, error) {
	match := escapeGlob(s.key(prefix)) + "*"

	var (
		cursor uint64
		keys   []string
		seen   = make(map[string]struct{})
	)
	for {
		batch, next, err := r.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
		}
		for _, k := range batch {
			// SCAN may return a key more than once.
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	entries := make([]Entry, 0, len(keys))
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		values, err := r.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis mget %s: %w", prefix, err)
		}
		for i, v := range values {
			str, ok := v.(string)
			if !ok {
				// deleted between SCAN and MGET
				continue
			}
			entries = append(entries, Entry{
				Key:   strings.TrimPrefix(keys[start+i], s.namespace),
				Value: []byte(str),
			})
		}
	}
	return entries, nil
}

func (s *RedisStore) Update(ctx context.Context, fn func(tx Tx) error, keys ...string) error {
	watched := make([]string, len(keys))
	for i, k := range keys {
		watched[i] = s.key(k)
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{store: s, rtx: rtx, writes: newWriteSet()}
			if err := fn(tx); err != nil {
				return err
			}
			if len(tx.writes.order) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, k := range tx.writes.order {
					if v := tx.writes.values[k]; v != nil {
						pipe.Set(ctx, s.key(k), v, 0)
					} else {
						pipe.Del(ctx, s.key(k))
					}
				}
				return nil
			})
			return err
		}, watched...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if attempt+1 < s.maxRetries {
			if err := sleepCtx(ctx, retryBackoff(attempt)); err != nil {
				return err
			}
		}
	}
	return ErrConflict
}

// retryBackoff returns a jittered wait that grows with attempt, capped at
// retryBackoffMax.
func retryBackoff(attempt int) time.Duration {
	ceiling := min(retryBackoffStep*time.Duration(attempt+1), retryBackoffMax)
	return ceiling/2 + rand.N(ceiling/2+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type redisTx struct {
	store  *RedisStore
	rtx    *redis.Tx
	writes *writeSet
}

func (t *redisTx) Get(ctx context.Context, key string) ([]byte, error) {
	if v, deleted, ok := t.writes.lookup(key); ok {
		if deleted {
			return nil, ErrNotFound
		}
		return v, nil
	}
	return t.store.get(ctx, t.rtx, key)
}

func (t *redisTx) List(ctx context.Context, prefix string) ([]Entry, error) {
	entries, err := t.store.list(ctx, t.rtx, prefix)
	if err != nil {
		return nil, err
	}
	return t.writes.overlay(prefix, entries), nil
}

func (t *redisTx) Set(key string, value []byte) {
	t.writes.set(key, value)
}

func (t *redisTx) Delete(key string) {
	t.writes.delete(key)
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
