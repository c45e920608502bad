package crypto

import "testing"

func TestHashAndCompare(t *testing.T) {
	hash, err := HashKey("s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CompareKey(hash, "s3cret"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := CompareKey(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch")
	}
}

func TestNewKey(t *testing.T) {
	a, err := NewKey(24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := NewKey(24)
	if a == b || len(a) != 32 {
		t.Fatalf("expected distinct 32 char keys, got %q and %q", a, b)
	}
}
