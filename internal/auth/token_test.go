package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("unit-test-secret")

func testUser() User {
	return User{
		ID:           "user-1",
		TenantID:     "tenant-1",
		Email:        "instructor@example.com",
		Role:         RoleInstructor,
		Status:       UserStatusActive,
		TokenVersion: 0,
	}
}

func TestCodecSignAndVerifyLight(t *testing.T) {
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, exp, err := codec.Sign(testUser(), "branch-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, err := codec.VerifyLight(token)
	if err != nil {
		t.Fatalf("VerifyLight: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.TenantID != "tenant-1" || claims.BranchID != "branch-1" {
		t.Fatalf("scope claims not preserved: %+v", claims)
	}
	if claims.Role != RoleInstructor {
		t.Fatalf("unexpected role claim: %s", claims.Role)
	}
	if claims.TokenVersion != 0 {
		t.Fatalf("unexpected version claim: %d", claims.TokenVersion)
	}
}

func TestCodecRejectsWrongIssuer(t *testing.T) {
	signer, err := NewCodec(testSecret, WithIssuer("wrong-issuer"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := signer.Sign(testUser(), "branch-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	verifier, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if _, err := verifier.VerifyLight(token); !errors.Is(err, ErrWrongIssuer) {
		t.Fatalf("expected ErrWrongIssuer, got %v", err)
	}
}

func TestCodecRejectsWrongAudience(t *testing.T) {
	signer, err := NewCodec(testSecret, WithAudience("other-app"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := signer.Sign(testUser(), "branch-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	verifier, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if _, err := verifier.VerifyLight(token); !errors.Is(err, ErrWrongAudience) {
		t.Fatalf("expected ErrWrongAudience, got %v", err)
	}
}

func TestCodecRejectsExpiredToken(t *testing.T) {
	issued := time.Now().UTC().Add(-time.Hour)
	signer, err := NewCodec(testSecret, WithCodecClock(func() time.Time { return issued }))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := signer.Sign(testUser(), "branch-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	verifier, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if _, err := verifier.VerifyLight(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestCodecRejectsBadSignature(t *testing.T) {
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := codec.Sign(testUser(), "branch-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	other, err := NewCodec([]byte("a-different-secret"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if _, err := other.VerifyLight(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestCodecRejectsMalformedToken(t *testing.T) {
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	for _, token := range []string{"", "   ", "not-a-token", strings.Repeat("x.", 3)} {
		if _, err := codec.VerifyLight(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}
