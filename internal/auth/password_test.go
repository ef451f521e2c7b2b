package auth

import "testing"

func TestHashAndVerifyRoundTrip(t *testing.T) {
	p := NewPasswordManager(8)
	hash, err := p.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !p.Verify("correct-horse-battery", hash) {
		t.Fatal("expected correct password to verify")
	}
	if p.Verify("wrong-password", hash) {
		t.Fatal("expected incorrect password to fail verification")
	}
}

func TestHashRejectsTooShortPassword(t *testing.T) {
	p := NewPasswordManager(12)
	if _, err := p.Hash("short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}
