package rate

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/multipanel/internal/cache"
)

func TestCacheLimiter_AllowsUpToMax(t *testing.T) {
	ctx := context.Background()
	l := NewCacheLimiter(cache.NewMemory("", time.Minute), "", 3, time.Minute)

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "clinic:admin@clinic.com")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}

	res, err := l.Allow(ctx, "clinic:admin@clinic.com")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("attempt over max should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("denied result must carry RetryAfter, got %v", res.RetryAfter)
	}
}

func TestCacheLimiter_KeysIndependent(t *testing.T) {
	ctx := context.Background()
	l := NewCacheLimiter(cache.NewMemory("", time.Minute), "", 1, time.Minute)

	if res, _ := l.Allow(ctx, "clinic:a"); !res.Allowed {
		t.Fatal("first hit on a should pass")
	}
	if res, _ := l.Allow(ctx, "clinic:a"); res.Allowed {
		t.Fatal("second hit on a should be denied")
	}
	if res, _ := l.Allow(ctx, "shop:a"); !res.Allowed {
		t.Fatal("other key must have its own window")
	}
}

func TestCacheLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	l := NewCacheLimiter(cache.NewMemory("", time.Minute), "", 1, time.Minute)

	l.Allow(ctx, "k")
	if res, _ := l.Allow(ctx, "k"); res.Allowed {
		t.Fatal("should be denied before reset")
	}
	if err := l.Reset(ctx, "k"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if res, _ := l.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("should be allowed after reset")
	}
}
