package users

import (
	"strings"
	"testing"

	"github.com/dropDatabas3/multipanel/internal/scope"
	"github.com/dropDatabas3/multipanel/internal/tenant"
)

func sharedPolicy() scope.Policy {
	return scope.ForTenant(&tenant.Tenant{Key: "clinic", Strategy: tenant.StorageShared})
}

func separatePolicy() scope.Policy {
	return scope.ForTenant(&tenant.Tenant{
		Key:      "shop",
		Strategy: tenant.StorageSeparate,
		Storage:  tenant.StorageConfig{Host: "db", Database: "shop_db"},
	})
}

func TestBuildInsert_Deterministic(t *testing.T) {
	q1, _ := buildInsert("users", map[string]any{"b": 2, "a": 1, "c": 3})
	q2, _ := buildInsert("users", map[string]any{"c": 3, "a": 1, "b": 2})
	if q1 != q2 {
		t.Fatalf("insert not deterministic:\n%s\n%s", q1, q2)
	}
	if q1 != "INSERT INTO users (a, b, c) VALUES ($1, $2, $3)" {
		t.Fatalf("unexpected query: %s", q1)
	}
}

func TestCreateRecord_SharedStampsDiscriminator(t *testing.T) {
	p := sharedPolicy()
	record := p.StampOnCreate(map[string]any{"email": "a@b.com"})
	q, args := buildInsert(p.Table(), record)

	if !strings.Contains(q, "dashboard_type") {
		t.Fatalf("shared insert must include discriminator: %s", q)
	}
	found := false
	for _, a := range args {
		if a == "clinic" {
			found = true
		}
	}
	if !found {
		t.Fatalf("discriminator value missing from args: %v", args)
	}
}

func TestCreateRecord_SeparateHasNoDiscriminator(t *testing.T) {
	p := separatePolicy()
	record := p.StampOnCreate(map[string]any{"email": "a@b.com"})
	q, _ := buildInsert(p.Table(), record)

	if strings.Contains(q, "dashboard_type") {
		t.Fatalf("separate insert must not include discriminator: %s", q)
	}
	if !strings.HasPrefix(q, "INSERT INTO users ") {
		t.Fatalf("unexpected table: %s", q)
	}
}

func TestSelectQuery_SharedAppendsFilter(t *testing.T) {
	s := NewStore(nil, sharedPolicy())
	q, args := s.selectQuery("LOWER(email) = LOWER($1)", []any{"a@b.com"})

	if !strings.Contains(q, "AND dashboard_type = $2") {
		t.Fatalf("missing scope filter: %s", q)
	}
	if len(args) != 2 || args[1] != "clinic" {
		t.Fatalf("args = %v", args)
	}
	if !strings.Contains(q, "FROM shared_users") {
		t.Fatalf("wrong table: %s", q)
	}
}

func TestSelectQuery_SeparateIsIdentity(t *testing.T) {
	s := NewStore(nil, separatePolicy())
	q, args := s.selectQuery("id = $1", []any{"x"})

	if strings.Contains(q, "dashboard_type =") {
		t.Fatalf("separate query must not filter by discriminator: %s", q)
	}
	if len(args) != 1 {
		t.Fatalf("args = %v", args)
	}
	if !strings.Contains(q, "FROM users") {
		t.Fatalf("wrong table: %s", q)
	}
}
