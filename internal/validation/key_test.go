package validation

import (
	"strings"
	"testing"
)

func TestValidTenantKey_Valid(t *testing.T) {
	valids := []string{
		"a",
		"shop",
		"clinic",
		"doctor_2",
		"x9",
		"a" + strings.Repeat("b", 49), // exactly 50
	}
	for _, v := range valids {
		if !ValidTenantKey(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
}

func TestValidTenantKey_Invalid(t *testing.T) {
	invalids := []string{
		"",                            // empty
		"9shop",                       // starts with digit
		"_shop",                       // starts with underscore
		"Clinic",                      // uppercase
		"doc-tor",                     // dash
		"my shop",                     // space
		"shop;drop",                   // semicolon
		"a" + strings.Repeat("b", 50), // 51 chars
	}
	for _, v := range invalids {
		if ValidTenantKey(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"98-0000-0000":    "9800000000",
		"+977 9800000000": "9779800000000",
		"9800000000":      "9800000000",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidPhone(t *testing.T) {
	if !ValidPhone("98-0000-0000") {
		t.Fatal("nepali mobile should be valid")
	}
	if !ValidPhone("12345678901234") {
		t.Fatal("14-digit international should be valid")
	}
	if ValidPhone("12345") {
		t.Fatal("short number should be invalid")
	}
}

func TestValidEmail(t *testing.T) {
	if !ValidEmail("admin@clinic.com") {
		t.Fatal("expected valid email")
	}
	for _, v := range []string{"", "admin", "admin@", "@clinic.com", "a b@c.com"} {
		if ValidEmail(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}
