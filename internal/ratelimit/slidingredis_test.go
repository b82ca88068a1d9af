package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterSlidingWindowPerKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	limiter := Limiter{Client: client, Prefix: "pricing:rl:cart:"}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2
	cart := "dddddddd-0000-0000-0000-000000000061"

	for i := 0; i < max; i++ {
		d, err := limiter.Allow(ctx, cart, window, max)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if d.Remaining != max-(i+1) {
			t.Fatalf("unexpected remaining: %d", d.Remaining)
		}
	}

	d, err := limiter.Allow(ctx, cart, window, max)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected third request to be rejected")
	}
	if d.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", d.Remaining)
	}

	// Another cart has its own window.
	other, err := limiter.Allow(ctx, "other-cart", window, max)
	if err != nil {
		t.Fatalf("allow other cart: %v", err)
	}
	if !other.Allowed {
		t.Fatal("expected a different cart to be unaffected")
	}

	mr.FastForward(window)

	d, err = limiter.Allow(ctx, cart, window, max)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !d.Allowed {
		t.Fatal("expected request after window to be allowed")
	}
}
