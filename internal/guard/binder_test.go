package guard

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/multipanel/internal/store"
	"github.com/dropDatabas3/multipanel/internal/tenant"
)

type fakeConn struct{ name string }

func (f *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (f *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (f *fakeConn) Ping(ctx context.Context) error { return nil }
func (f *fakeConn) Close()                         {}

func testResolver(failKeys ...string) *store.Resolver {
	fail := map[string]bool{}
	for _, k := range failKeys {
		fail[k] = true
	}
	return store.NewResolver(&fakeConn{name: "shared"},
		store.WithOpenFunc(func(ctx context.Context, cfg tenant.StorageConfig) (store.Conn, error) {
			if fail[cfg.Database] {
				return nil, errors.New("refused")
			}
			return &fakeConn{name: cfg.Database}, nil
		}))
}

func activeTenant(key string) tenant.Tenant {
	return tenant.Tenant{
		Key:         key,
		DisplayName: key,
		Strategy:    tenant.StorageShared,
		AuthMethods: []tenant.AuthMethod{tenant.AuthEmail},
		Active:      true,
	}
}

func TestRebuild_BindsBothSurfaces(t *testing.T) {
	b := NewBinder(testResolver())
	res := b.Rebuild(context.Background(), []tenant.Tenant{activeTenant("clinic")})

	if len(res.Bound) != 1 || res.Bound[0] != "clinic" {
		t.Fatalf("bound = %v", res.Bound)
	}

	web, err := b.BindingFor("clinic", SurfaceWeb)
	if err != nil {
		t.Fatalf("web binding: %v", err)
	}
	if web.GuardName() != "clinic" {
		t.Fatalf("guard name = %q", web.GuardName())
	}

	api, err := b.BindingFor("clinic", SurfaceAPI)
	if err != nil {
		t.Fatalf("api binding: %v", err)
	}
	if api.GuardName() != "api-clinic" {
		t.Fatalf("api guard name = %q", api.GuardName())
	}
	if api.Conn != web.Conn {
		t.Fatal("both surfaces must share the backing connection")
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	b := NewBinder(testResolver())
	ts := []tenant.Tenant{activeTenant("clinic"), activeTenant("shop")}

	b.Rebuild(context.Background(), ts)
	first := b.Keys()
	b.Rebuild(context.Background(), ts)
	second := b.Keys()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuild not idempotent: %v vs %v", first, second)
	}
}

func TestRebuild_DeactivationCutsReachability(t *testing.T) {
	b := NewBinder(testResolver())
	ts := []tenant.Tenant{activeTenant("clinic")}
	b.Rebuild(context.Background(), ts)

	if _, err := b.BindingFor("clinic", SurfaceWeb); err != nil {
		t.Fatalf("before deactivation: %v", err)
	}

	ts[0].Active = false
	b.Rebuild(context.Background(), ts)

	if _, err := b.BindingFor("clinic", SurfaceWeb); !errors.Is(err, ErrTenantInactive) {
		t.Fatalf("expected ErrTenantInactive, got %v", err)
	}
}

func TestRebuild_RemovedTenantIsUnknown(t *testing.T) {
	b := NewBinder(testResolver())
	b.Rebuild(context.Background(), []tenant.Tenant{activeTenant("clinic")})
	b.Rebuild(context.Background(), nil)

	if _, err := b.BindingFor("clinic", SurfaceWeb); !errors.Is(err, ErrUnknownTenant) {
		t.Fatalf("expected ErrUnknownTenant, got %v", err)
	}
}

func TestRebuild_UnresolvableTenantOmitted(t *testing.T) {
	b := NewBinder(testResolver("bad_db"))

	good := activeTenant("clinic")
	bad := tenant.Tenant{
		Key:         "broken",
		Strategy:    tenant.StorageSeparate,
		Storage:     tenant.StorageConfig{Host: "db", Database: "bad_db"},
		AuthMethods: []tenant.AuthMethod{tenant.AuthEmail},
		Active:      true,
	}

	res := b.Rebuild(context.Background(), []tenant.Tenant{good, bad})
	if len(res.Skipped) != 1 || res.Skipped[0] != "broken" {
		t.Fatalf("skipped = %v", res.Skipped)
	}
	if _, err := b.BindingFor("clinic", SurfaceWeb); err != nil {
		t.Fatalf("healthy tenant must survive a broken sibling: %v", err)
	}
	if _, err := b.BindingFor("broken", SurfaceWeb); !errors.Is(err, ErrUnknownTenant) {
		t.Fatalf("expected ErrUnknownTenant for omitted tenant, got %v", err)
	}
}

func TestBindingFor_NeverSeesPartialTable(t *testing.T) {
	b := NewBinder(testResolver())
	ts := []tenant.Tenant{activeTenant("clinic"), activeTenant("shop")}
	b.Rebuild(context.Background(), ts)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// Un snapshot es una tabla completa: si clinic está, shop también.
			tbl := b.table.Load()
			_, hasClinic := tbl.bindings[bindingKey{"clinic", SurfaceWeb}]
			_, hasShop := tbl.bindings[bindingKey{"shop", SurfaceWeb}]
			if hasClinic != hasShop {
				t.Error("observed partially-updated binding table")
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		b.Rebuild(context.Background(), ts)
		b.Rebuild(context.Background(), nil)
	}
	b.Rebuild(context.Background(), ts)
	close(stop)
	wg.Wait()
}
