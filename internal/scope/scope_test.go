package scope

import (
	"errors"
	"testing"

	"github.com/dropDatabas3/multipanel/internal/tenant"
)

func sharedTenant() *tenant.Tenant {
	return &tenant.Tenant{Key: "clinic", Strategy: tenant.StorageShared}
}

func separateTenant() *tenant.Tenant {
	return &tenant.Tenant{
		Key:      "shop",
		Strategy: tenant.StorageSeparate,
		Storage:  tenant.StorageConfig{Host: "db", Database: "shop_db"},
	}
}

func TestForTenant_Shared(t *testing.T) {
	p := ForTenant(sharedTenant())

	if !p.Shared() {
		t.Fatal("expected shared policy")
	}
	if p.Table() != tenant.DefaultSharedTable {
		t.Fatalf("table = %q", p.Table())
	}

	clause, args := p.Filter(3)
	if clause != "dashboard_type = $3" {
		t.Fatalf("clause = %q", clause)
	}
	if len(args) != 1 || args[0] != "clinic" {
		t.Fatalf("args = %v", args)
	}

	key := p.UniquenessKey("email")
	if len(key) != 2 || key[0] != "email" || key[1] != "dashboard_type" {
		t.Fatalf("uniqueness key = %v", key)
	}
}

func TestForTenant_Separate(t *testing.T) {
	p := ForTenant(separateTenant())

	if p.Shared() {
		t.Fatal("expected non-shared policy")
	}
	if p.Table() != SeparateUsersTable {
		t.Fatalf("table = %q", p.Table())
	}

	clause, args := p.Filter(1)
	if clause != "" || args != nil {
		t.Fatalf("separate filter should be identity, got %q %v", clause, args)
	}
	if key := p.UniquenessKey("email"); len(key) != 1 || key[0] != "email" {
		t.Fatalf("uniqueness key = %v", key)
	}
}

func TestStampOnCreate(t *testing.T) {
	p := ForTenant(sharedTenant())

	rec := p.StampOnCreate(map[string]any{"email": "a@b.com"})
	if rec["dashboard_type"] != "clinic" {
		t.Fatalf("discriminator not stamped: %v", rec)
	}

	// Un valor ya presente no se pisa; Check lo atrapa después.
	rec = p.StampOnCreate(map[string]any{"dashboard_type": "other"})
	if rec["dashboard_type"] != "other" {
		t.Fatal("existing discriminator should not be overwritten")
	}

	sep := ForTenant(separateTenant())
	rec = sep.StampOnCreate(map[string]any{"email": "a@b.com"})
	if _, ok := rec["dashboard_type"]; ok {
		t.Fatal("separate policy must not stamp")
	}
}

func TestCheck_Violation(t *testing.T) {
	p := ForTenant(sharedTenant())

	if err := p.Check("clinic"); err != nil {
		t.Fatalf("own row: %v", err)
	}
	if err := p.Check("shop"); !errors.Is(err, ErrViolation) {
		t.Fatalf("expected ErrViolation, got %v", err)
	}

	sep := ForTenant(separateTenant())
	if err := sep.Check(""); err != nil {
		t.Fatalf("separate check should be no-op: %v", err)
	}
}
