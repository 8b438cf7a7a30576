package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	issuer, err := NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}

	token, err := issuer.Issue("abc", "iv_123", time.Now().Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Expected valid token, got %v", err)
	}
	if claims.InterviewID != "iv_123" {
		t.Errorf("Expected interview id iv_123, got %s", claims.InterviewID)
	}
	if claims.MeetingCode != "abc" {
		t.Errorf("Expected meeting code abc, got %s", claims.MeetingCode)
	}
}

func TestValidateRejects(t *testing.T) {
	issuer, _ := NewIssuer("test-secret")
	other, _ := NewIssuer("other-secret")

	expired, _ := issuer.Issue("abc", "iv_1", time.Now().Add(-time.Minute))
	foreign, _ := other.Issue("abc", "iv_1", time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: expired},
		{name: "wrong secret", token: foreign},
		{name: "garbage", token: "not-a-jwt"},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Validate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestIssueRequiresInterviewID(t *testing.T) {
	issuer, _ := NewIssuer("test-secret")
	if _, err := issuer.Issue("abc", "", time.Now().Add(time.Hour)); err == nil {
		t.Error("Expected error for empty interview id")
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer(""); err == nil {
		t.Error("Expected error for empty secret")
	}
}
