package auth

import (
	"testing"
	"time"
)

func TestVerifyTokenRoundTrip(t *testing.T) {
	tok, err := issueVerifyToken("64f0c9e2a4b5c6d7e8f90123", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issueVerifyToken: %v", err)
	}

	uid, err := parseVerifyToken(tok, "test-secret")
	if err != nil {
		t.Fatalf("parseVerifyToken: %v", err)
	}
	if uid != "64f0c9e2a4b5c6d7e8f90123" {
		t.Fatalf("subject = %q", uid)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	tok, err := issueVerifyToken("u1", "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("issueVerifyToken: %v", err)
	}
	if _, err := parseVerifyToken(tok, "secret-b"); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	tok, err := issueVerifyToken("u1", "test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("issueVerifyToken: %v", err)
	}
	if _, err := parseVerifyToken(tok, "test-secret"); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestVerifyTokenGarbage(t *testing.T) {
	if _, err := parseVerifyToken("not.a.jwt", "test-secret"); err == nil {
		t.Fatal("garbage token accepted")
	}
}
