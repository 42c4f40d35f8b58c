package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/multipanel/internal/tenant"
)

// fakeConn implementa Conn sin tocar una base real.
type fakeConn struct {
	id     int
	closed atomic.Bool
}

func (f *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (f *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (f *fakeConn) Ping(ctx context.Context) error { return nil }
func (f *fakeConn) Close()                         { f.closed.Store(true) }

func separateTenant(key string) *tenant.Tenant {
	return &tenant.Tenant{
		Key:      key,
		Strategy: tenant.StorageSeparate,
		Storage:  tenant.StorageConfig{Host: "db.local", Database: key + "_db"},
	}
}

func TestResolve_SharedReturnsSharedPool(t *testing.T) {
	shared := &fakeConn{id: 0}
	r := NewResolver(shared)

	got, err := r.Resolve(context.Background(), &tenant.Tenant{Key: "clinic", Strategy: tenant.StorageShared})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != shared {
		t.Fatal("shared strategy must resolve to the shared pool")
	}
	if r.Has("clinic") {
		t.Fatal("shared strategy must not register a per-tenant pool")
	}
}

func TestResolve_SeparateMemoized(t *testing.T) {
	var opens atomic.Int32
	r := NewResolver(&fakeConn{}, WithOpenFunc(func(ctx context.Context, cfg tenant.StorageConfig) (Conn, error) {
		opens.Add(1)
		return &fakeConn{id: int(opens.Load())}, nil
	}))

	tn := separateTenant("shop")
	ctx := context.Background()

	// Resoluciones concurrentes del mismo tenant: un solo open.
	var wg sync.WaitGroup
	conns := make([]Conn, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.Resolve(ctx, tn)
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			conns[i] = c
		}(i)
	}
	wg.Wait()

	if n := opens.Load(); n != 1 {
		t.Fatalf("open called %d times, want 1", n)
	}
	for i := 1; i < len(conns); i++ {
		if conns[i] != conns[0] {
			t.Fatal("all resolutions must return the cached handle")
		}
	}
	if !r.Has("shop") {
		t.Fatal("pool should be registered")
	}
}

func TestResolve_OpenFailureReported(t *testing.T) {
	r := NewResolver(&fakeConn{}, WithOpenFunc(func(ctx context.Context, cfg tenant.StorageConfig) (Conn, error) {
		return nil, errors.New("dial tcp: refused")
	}))

	_, err := r.Resolve(context.Background(), separateTenant("shop"))
	if !errors.Is(err, ErrConnectionUnavailable) {
		t.Fatalf("expected ErrConnectionUnavailable, got %v", err)
	}
	if r.Has("shop") {
		t.Fatal("failed open must not register a pool")
	}
}

func TestTest_NeverThrows(t *testing.T) {
	r := NewResolver(&fakeConn{}, WithProbeFunc(func(ctx context.Context, cfg tenant.StorageConfig) error {
		return errors.New("boom")
	}))
	if r.Test(context.Background(), tenant.StorageConfig{Host: "x", Database: "y"}) {
		t.Fatal("expected false on probe failure")
	}

	ok := NewResolver(&fakeConn{}, WithProbeFunc(func(ctx context.Context, cfg tenant.StorageConfig) error {
		return nil
	}))
	if !ok.Test(context.Background(), tenant.StorageConfig{Host: "x", Database: "y"}) {
		t.Fatal("expected true on probe success")
	}
}

func TestClose_RemovesAndClosesPool(t *testing.T) {
	conn := &fakeConn{}
	r := NewResolver(&fakeConn{}, WithOpenFunc(func(ctx context.Context, cfg tenant.StorageConfig) (Conn, error) {
		return conn, nil
	}))

	if _, err := r.Resolve(context.Background(), separateTenant("shop")); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	r.Close("shop")

	if r.Has("shop") {
		t.Fatal("pool still registered after Close")
	}
	if !conn.closed.Load() {
		t.Fatal("underlying conn not closed")
	}

	// Close de un tenant inexistente es no-op.
	r.Close("ghost")
}

func TestStats(t *testing.T) {
	r := NewResolver(&fakeConn{}, WithOpenFunc(func(ctx context.Context, cfg tenant.StorageConfig) (Conn, error) {
		return &fakeConn{}, nil
	}))
	for _, k := range []string{"a1", "b2"} {
		if _, err := r.Resolve(context.Background(), separateTenant(k)); err != nil {
			t.Fatalf("resolve %s: %v", k, err)
		}
	}
	st := r.Stats()
	if st.TotalActive != 2 || len(st.Connections) != 2 {
		t.Fatalf("stats = %+v", st)
	}
}
