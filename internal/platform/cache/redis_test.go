package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/toursync/toursync-admin/internal/platform/cache"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := cache.New(context.Background(), &redis.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()
}

func TestNewFailsWhenServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := cache.New(context.Background(), &redis.Options{Addr: addr, MaxRetries: -1}); err == nil {
		t.Fatalf("expected ping error")
	}
}
