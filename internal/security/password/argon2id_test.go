package password

import "testing"

func TestHashVerify_RoundTrip(t *testing.T) {
	phc, err := Hash(Default, "correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !Verify("correct horse battery", phc) {
		t.Fatal("expected verify to succeed")
	}
	if Verify("wrong password", phc) {
		t.Fatal("expected verify to fail for wrong password")
	}
}

func TestVerify_MalformedPHC(t *testing.T) {
	for _, phc := range []string{
		"",
		"plain",
		"$argon2id$v=18$m=1,t=1,p=1$AAAA$BBBB",
		"$bcrypt$whatever",
		"$argon2id$v=19$m=x,t=y,p=z$AAAA$BBBB",
	} {
		if Verify("anything", phc) {
			t.Fatalf("expected false for %q", phc)
		}
	}
}

func TestValidate_MinLength(t *testing.T) {
	if err := Validate("short"); err == nil {
		t.Fatal("expected error for short password")
	}
	if err := Validate("longenough"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
