package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("t", time.Minute)

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := c.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("get: %q, %v", v, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_GetDelConsumes(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", time.Minute)

	if err := c.Set(ctx, "otp", "123456", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := c.GetDel(ctx, "otp")
	if err != nil || v != "123456" {
		t.Fatalf("getdel: %q, %v", v, err)
	}
	if _, err := c.GetDel(ctx, "otp"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second getdel should be ErrNotFound, got %v", err)
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", time.Minute)

	if err := c.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired key, got %v", err)
	}
}

func TestMemory_IncrWindow(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", time.Minute)

	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(ctx, "hits", time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != want {
			t.Fatalf("incr = %d, want %d", n, want)
		}
	}

	ttl, err := c.TTL(ctx, "hits")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}
