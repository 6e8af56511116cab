package kv_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"civicportal/internal/kv"
	"civicportal/internal/kv/kvtest"
)

func TestRedisStore(t *testing.T) {
	kvtest.RunStoreSuite(t, kvtest.NewRedisStore(t))
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	mr, client := kvtest.NewRedis(t)
	store := kv.NewRedisStore(client, "civic:", 0)

	if err := store.Set(context.Background(), "users:1", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("civic:users:1") {
		t.Fatalf("expected namespaced key, have %v", mr.Keys())
	}

	entries, err := store.List(context.Background(), "users:")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Key != "users:1" {
		t.Fatalf("List = %+v, want key without namespace", entries)
	}
}

func TestRedisStoreUpdateGivesUpAfterRetries(t *testing.T) {
	_, client := kvtest.NewRedis(t)
	store := kv.NewRedisStore(client, "", 3)
	ctx := context.Background()

	attempts := 0
	err := store.Update(ctx, func(tx kv.Tx) error {
		attempts++
		if _, err := tx.Get(ctx, "hot"); err != nil && !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		// a write from outside the transaction invalidates the WATCH
		if err := client.Set(ctx, "hot", attempts, 0).Err(); err != nil {
			return err
		}
		tx.Set("hot", []byte("mine"))
		return nil
	}, "hot")

	if !errors.Is(err, kv.ErrConflict) {
		t.Fatalf("Update err = %v, want ErrConflict", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if v, _ := client.Get(ctx, "hot").Result(); v == "mine" {
		t.Fatal("conflicting write was committed")
	}
}

func TestRedisStoreUpdateStopsRetryingWhenCancelled(t *testing.T) {
	_, client := kvtest.NewRedis(t)
	store := kv.NewRedisStore(client, "", 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	err := store.Update(ctx, func(tx kv.Tx) error {
		attempts++
		if err := client.Set(context.Background(), "hot", attempts, 0).Err(); err != nil {
			return err
		}
		cancel()
		tx.Set("hot", []byte("mine"))
		return nil
	}, "hot")

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Update err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestRedisStoreUpdateSurvivesContention(t *testing.T) {
	_, client := kvtest.NewRedis(t)
	store := kv.NewRedisStore(client, "", 0)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				err := store.Update(ctx, func(tx kv.Tx) error {
					n := 0
					v, err := tx.Get(ctx, "counter")
					switch {
					case err == nil:
						n, _ = strconv.Atoi(string(v))
					case !errors.Is(err, kv.ErrNotFound):
						return err
					}
					tx.Set("counter", []byte(strconv.Itoa(n+1)))
					return nil
				}, "counter")
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Update under contention = %v", err)
	}

	v, err := client.Get(ctx, "counter").Result()
	if err != nil {
		t.Fatal(err)
	}
	if v != strconv.Itoa(workers*perWorker) {
		t.Fatalf("counter = %s, want %d", v, workers*perWorker)
	}
}

func TestRedisStoreUpdateWithoutWritesSkipsExec(t *testing.T) {
	_, client := kvtest.NewRedis(t)
	store := kv.NewRedisStore(client, "", 0)
	ctx := context.Background()

	err := store.Update(ctx, func(tx kv.Tx) error {
		_, err := tx.Get(ctx, "nothing")
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	}, "nothing")
	if err != nil {
		t.Fatalf("read-only Update: %v", err)
	}
	if n, _ := client.Exists(ctx, "nothing").Result(); n != 0 {
		t.Fatal("read-only Update created a key")
	}
}
