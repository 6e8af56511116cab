package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"civicportal/internal/kv/kvtest"
)

type recordingHandler struct {
	mu   sync.Mutex
	ids  []string
	fail bool
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return errors.New("handler failed")
	}
	h.ids = append(h.ids, msg.ID)
	return nil
}

func newTestConsumer(t *testing.T, handler MessageHandler, claimInterval time.Duration) (*Consumer, *redis.Client) {
	t.Helper()
	_, client := kvtest.NewRedis(t)
	c := NewConsumer(client, "events", "group", "worker-1", claimInterval, zerolog.Nop(), handler)
	c.block = 10 * time.Millisecond
	if err := c.EnsureGroup(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c, client
}

func add(t *testing.T, client *redis.Client, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := client.XAdd(context.Background(), &redis.XAddArgs{
			Stream: "events",
			Values: map[string]any{"payload": "{}"},
		}).Err(); err != nil {
			t.Fatal(err)
		}
	}
}

func pendingCount(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), "events", "group").Result()
	if err != nil {
		t.Fatal(err)
	}
	return p.Count
}

func TestEnsureGroupIsIdempotent(t *testing.T) {
	c, _ := newTestConsumer(t, &recordingHandler{}, time.Minute)
	if err := c.EnsureGroup(context.Background()); err != nil {
		t.Fatalf("second EnsureGroup = %v", err)
	}
}

func TestReadOnceAcksHandledMessages(t *testing.T) {
	h := &recordingHandler{}
	c, client := newTestConsumer(t, h, time.Minute)
	add(t, client, 3)

	n, err := c.ReadOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(h.ids) != 3 {
		t.Fatalf("acked %d, handled %d", n, len(h.ids))
	}
	if p := pendingCount(t, client); p != 0 {
		t.Fatalf("%d messages still pending", p)
	}

	if n, err := c.ReadOnce(context.Background()); err != nil || n != 0 {
		t.Fatalf("empty read = %d, %v", n, err)
	}
}

func TestFailedMessagesStayPendingAndAreClaimed(t *testing.T) {
	h := &recordingHandler{fail: true}
	c, client := newTestConsumer(t, h, 0)
	add(t, client, 2)

	n, err := c.ReadOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("ReadOnce = %d, %v", n, err)
	}
	if p := pendingCount(t, client); p != 2 {
		t.Fatalf("pending = %d, want 2", p)
	}

	h.mu.Lock()
	h.fail = false
	h.mu.Unlock()

	n, err = c.ClaimStalled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || pendingCount(t, client) != 0 {
		t.Fatalf("ClaimStalled acked %d", n)
	}
}

type stuckHandler struct {
	mu    sync.Mutex
	stuck map[string]bool
	ok    int
}

func (h *stuckHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stuck[msg.ID] {
		return errors.New("handler failed")
	}
	h.ok++
	return nil
}

func TestClaimStalledPagesPastFailingHead(t *testing.T) {
	h := &stuckHandler{stuck: map[string]bool{}}
	c, client := newTestConsumer(t, h, 0)
	c.maxDeliveries = 100
	add(t, client, 25)

	// Leave everything pending, with the first page of ids failing for good.
	h.mu.Lock()
	msgs, err := client.XRange(context.Background(), "events", "-", "+").Result()
	if err != nil {
		t.Fatal(err)
	}
	for _, msg := range msgs {
		h.stuck[msg.ID] = true
	}
	h.mu.Unlock()
	for i := 0; i < 3; i++ {
		if _, err := c.ReadOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if p := pendingCount(t, client); p != 25 {
		t.Fatalf("pending = %d, want 25", p)
	}

	h.mu.Lock()
	for _, msg := range msgs[readCount:] {
		delete(h.stuck, msg.ID)
	}
	h.mu.Unlock()

	n, err := c.ClaimStalled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 15 {
		t.Fatalf("ClaimStalled acked %d, want 15", n)
	}
	if p := pendingCount(t, client); p != readCount {
		t.Fatalf("pending = %d, want %d", p, readCount)
	}
}

func TestClaimStalledDeadLettersAfterMaxDeliveries(t *testing.T) {
	h := &recordingHandler{fail: true}
	c, client := newTestConsumer(t, h, 0)
	c.maxDeliveries = 3
	add(t, client, 1)

	if _, err := c.ReadOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10 && pendingCount(t, client) > 0; i++ {
		n, err := c.ClaimStalled(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Fatalf("ClaimStalled acked %d failing messages", n)
		}
	}
	if p := pendingCount(t, client); p != 0 {
		t.Fatalf("pending = %d, want 0", p)
	}

	dead, err := client.XRange(context.Background(), "events:dead", "-", "+").Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(dead) != 1 {
		t.Fatalf("dead-letter stream has %d entries", len(dead))
	}
	if dead[0].Values["payload"] != "{}" || dead[0].Values["origin_id"] == "" {
		t.Fatalf("dead-letter entry = %v", dead[0].Values)
	}
}

func TestNextStreamID(t *testing.T) {
	cases := map[string]string{
		"1-0":                    "1-1",
		"1700000000000-41":       "1700000000000-42",
		"5-18446744073709551615": "6-0",
	}
	for in, want := range cases {
		got, err := nextStreamID(in)
		if err != nil || got != want {
			t.Errorf("nextStreamID(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := nextStreamID("garbage"); err == nil {
		t.Error("malformed id accepted")
	}
}
