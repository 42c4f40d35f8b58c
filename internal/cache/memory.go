package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre patrickmn/go-cache.
// Útil para desarrollo y testing. Las operaciones compuestas (GetDel, Incr)
// se serializan con un mutex propio: go-cache no las ofrece atómicas.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
	mu     sync.Mutex
}

// NewMemory crea un cliente de cache en memoria.
func NewMemory(prefix string, defaultTTL time.Duration) *memoryClient {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(defaultTTL, time.Minute),
	}
}

func (m *memoryClient) key(k string) string {
	if m.prefix == "" {
		return k
	}
	return m.prefix + ":" + k
}

func (m *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) GetDel(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.key(key)
	v, ok := m.c.Get(k)
	if !ok {
		return "", ErrNotFound
	}
	m.c.Delete(k)
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(m.key(key), value, ttl)
	return nil
}

func (m *memoryClient) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.key(key)
	if v, ok := m.c.Get(k); ok {
		n, _ := strconv.ParseInt(v.(string), 10, 64)
		n++
		// Conservar la expiración original de la ventana.
		if _, exp, ok2 := m.c.GetWithExpiration(k); ok2 && !exp.IsZero() {
			m.c.Set(k, strconv.FormatInt(n, 10), time.Until(exp))
		} else {
			m.c.Set(k, strconv.FormatInt(n, 10), gocache.NoExpiration)
		}
		return n, nil
	}
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(k, "1", ttl)
	return 1, nil
}

func (m *memoryClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	_, exp, ok := m.c.GetWithExpiration(m.key(key))
	if !ok || exp.IsZero() {
		return 0, nil
	}
	d := time.Until(exp)
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (m *memoryClient) Delete(ctx context.Context, key string) error {
	m.c.Delete(m.key(key))
	return nil
}

func (m *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.c.Get(m.key(key))
	return ok, nil
}

func (m *memoryClient) Ping(ctx context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}
