package app

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"civicportal/internal/config"
)

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.AppConfig{Store: config.StoreConfig{Driver: "bolt"}}
	if _, err := Open(context.Background(), cfg, zerolog.Nop(), "test"); err == nil || !strings.Contains(err.Error(), "bolt") {
		t.Fatalf("Open = %v", err)
	}
}

func TestOpenUnreachableRedis(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	cfg := &config.AppConfig{
		Store: config.StoreConfig{Driver: config.StoreDriverRedis},
		Redis: config.RedisConfig{Addr: addr},
	}
	if _, err := Open(context.Background(), cfg, zerolog.Nop(), "test"); err == nil {
		t.Fatal("Open succeeded without redis")
	}
}
