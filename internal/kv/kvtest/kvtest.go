// Package kvtest provides in-process stores and a shared behaviour suite
// for kv.Store implementations.
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"civicportal/internal/kv"
)

// NewRedis starts an in-process Redis server for the duration of the test.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// NewRedisStore returns a store backed by an in-process Redis server.
func NewRedisStore(t testing.TB) *kv.RedisStore {
	t.Helper()

	_, client := NewRedis(t)
	return kv.NewRedisStore(client, "test:", 0)
}

// RunStoreSuite checks the behaviour every kv.Store must share.
func RunStoreSuite(t *testing.T, store kv.Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		if _, err := store.Get(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("Get missing = %v, want ErrNotFound", err)
		}
	})

	t.Run("set get delete", func(t *testing.T) {
		if err := store.Set(ctx, "a:1", []byte("one")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := store.Get(ctx, "a:1")
		if err != nil || string(got) != "one" {
			t.Fatalf("Get = %q, %v", got, err)
		}
		if err := store.Set(ctx, "a:1", []byte("uno")); err != nil {
			t.Fatalf("overwrite: %v", err)
		}
		got, _ = store.Get(ctx, "a:1")
		if string(got) != "uno" {
			t.Fatalf("after overwrite Get = %q", got)
		}
		if err := store.Delete(ctx, "a:1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := store.Delete(ctx, "a:1"); err != nil {
			t.Fatalf("second Delete: %v", err)
		}
		if _, err := store.Get(ctx, "a:1"); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("Get after delete = %v", err)
		}
	})

	t.Run("list by prefix", func(t *testing.T) {
		for _, k := range []string{"list:x:1", "list:x:2", "list:y:1", "listing:1"} {
			if err := store.Set(ctx, k, []byte(k)); err != nil {
				t.Fatalf("Set %s: %v", k, err)
			}
		}
		entries, err := store.List(ctx, "list:x:")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if got := keysOf(entries); fmt.Sprint(got) != "[list:x:1 list:x:2]" {
			t.Fatalf("List keys = %v", got)
		}
		for _, e := range entries {
			if string(e.Value) != e.Key {
				t.Fatalf("entry %s has value %q", e.Key, e.Value)
			}
		}
	})

	t.Run("list treats glob characters literally", func(t *testing.T) {
		if err := store.Set(ctx, "glob:a*b", []byte("1")); err != nil {
			t.Fatal(err)
		}
		if err := store.Set(ctx, "glob:axxb", []byte("2")); err != nil {
			t.Fatal(err)
		}
		entries, err := store.List(ctx, "glob:a*")
		if err != nil {
			t.Fatal(err)
		}
		if got := keysOf(entries); fmt.Sprint(got) != "[glob:a*b]" {
			t.Fatalf("List keys = %v", got)
		}
	})

	t.Run("update commits all writes", func(t *testing.T) {
		err := store.Update(ctx, func(tx kv.Tx) error {
			tx.Set("tx:a", []byte("1"))
			tx.Set("tx:b", []byte("2"))
			return nil
		}, "tx:a", "tx:b")
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		for _, k := range []string{"tx:a", "tx:b"} {
			if _, err := store.Get(ctx, k); err != nil {
				t.Fatalf("Get %s: %v", k, err)
			}
		}
	})

	t.Run("update aborts on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.Update(ctx, func(tx kv.Tx) error {
			tx.Set("abort:a", []byte("1"))
			return boom
		}, "abort:a")
		if !errors.Is(err, boom) {
			t.Fatalf("Update err = %v, want boom", err)
		}
		if _, err := store.Get(ctx, "abort:a"); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("aborted write is visible: %v", err)
		}
	})

	t.Run("tx reads its own writes", func(t *testing.T) {
		if err := store.Set(ctx, "own:old", []byte("x")); err != nil {
			t.Fatal(err)
		}
		err := store.Update(ctx, func(tx kv.Tx) error {
			tx.Set("own:new", []byte("y"))
			tx.Delete("own:old")

			if v, err := tx.Get(ctx, "own:new"); err != nil || string(v) != "y" {
				return fmt.Errorf("tx Get own:new = %q, %v", v, err)
			}
			if _, err := tx.Get(ctx, "own:old"); !errors.Is(err, kv.ErrNotFound) {
				return fmt.Errorf("tx Get own:old = %v, want ErrNotFound", err)
			}
			entries, err := tx.List(ctx, "own:")
			if err != nil {
				return err
			}
			if got := keysOf(entries); fmt.Sprint(got) != "[own:new]" {
				return fmt.Errorf("tx List = %v", got)
			}
			return nil
		}, "own:new", "own:old")
		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		const workers = 20
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.Update(ctx, func(tx kv.Tx) error {
					n := 0
					v, err := tx.Get(ctx, "counter")
					switch {
					case err == nil:
						if n, err = strconv.Atoi(string(v)); err != nil {
							return err
						}
					case !errors.Is(err, kv.ErrNotFound):
						return err
					}
					tx.Set("counter", []byte(strconv.Itoa(n+1)))
					return nil
				}, "counter")
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
		}

		v, err := store.Get(ctx, "counter")
		if err != nil {
			t.Fatal(err)
		}
		if string(v) != fmt.Sprint(workers) {
			t.Fatalf("counter = %s, want %d", v, workers)
		}
	})
}

func keysOf(entries []kv.Entry) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys
}
