package auth

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	token, err := m.IssueToken("operator")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	operator, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if operator != "operator" {
		t.Fatalf("operator = %q, want %q", operator, "operator")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)
	token, err := m.IssueToken("operator")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := m.Validate(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)
	token, _ := issuer.IssueToken("operator")
	if _, err := verifier.Validate(token); err == nil {
		t.Fatal("expected token signed with a different secret to be rejected")
	}
}

func TestBearerTokenExtraction(t *testing.T) {
	if _, err := BearerToken(""); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken for empty header, got %v", err)
	}
	if _, err := BearerToken("Basic abc"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for non-bearer scheme, got %v", err)
	}
	token, err := BearerToken("Bearer abc123")
	if err != nil || token != "abc123" {
		t.Fatalf("BearerToken = (%q, %v), want (abc123, nil)", token, err)
	}
}

func TestAuthorizeUpgradeReadsQueryParam(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	token, _ := m.IssueToken("operator")

	req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	req.URL.RawQuery = url.Values{"token": {token}}.Encode()

	operator, err := AuthorizeUpgrade(m, req)
	if err != nil {
		t.Fatalf("AuthorizeUpgrade: %v", err)
	}
	if operator != "operator" {
		t.Fatalf("operator = %q, want %q", operator, "operator")
	}
}
