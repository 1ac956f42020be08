package token

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/campuscycle/campuscycle/internal/platform/errors"
)

func testIssuer(t *testing.T, now func() time.Time) *Issuer {
	t.Helper()
	issuer, err := NewIssuer("access-secret", "refresh-secret", now)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := testIssuer(t, nil)

	signed, err := issuer.MintAccess("user-1", "ADMIN")
	if err != nil {
		t.Fatalf("mint access: %v", err)
	}
	userID, role, err := issuer.VerifyAccess(signed)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("user id = %q, want user-1", userID)
	}
	if role != "ADMIN" {
		t.Fatalf("role = %q, want ADMIN", role)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	issuer := testIssuer(t, nil)

	signed, err := issuer.MintRefresh("user-2")
	if err != nil {
		t.Fatalf("mint refresh: %v", err)
	}
	userID, err := issuer.VerifyRefresh(signed)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if userID != "user-2" {
		t.Fatalf("user id = %q, want user-2", userID)
	}
}

func TestVerifyAccessRejectsExpiredToken(t *testing.T) {
	current := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, func() time.Time { return current })

	signed, err := issuer.MintAccess("user-1", "")
	if err != nil {
		t.Fatalf("mint access: %v", err)
	}

	current = current.Add(AccessTTL + time.Minute)
	_, _, err = issuer.VerifyAccess(signed)
	if err == nil {
		t.Fatal("expected expired token error")
	}
	if apperrors.CodeOf(err) != apperrors.CodeUnauthorized {
		t.Fatalf("code = %q, want UNAUTHORIZED", apperrors.CodeOf(err))
	}
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	issuer := testIssuer(t, nil)

	refresh, err := issuer.MintRefresh("user-1")
	if err != nil {
		t.Fatalf("mint refresh: %v", err)
	}
	if _, _, err := issuer.VerifyAccess(refresh); err == nil {
		t.Fatal("expected signature mismatch for refresh token on access path")
	}
}

func TestVerifyAccessRejectsEmptyToken(t *testing.T) {
	issuer := testIssuer(t, nil)
	_, _, err := issuer.VerifyAccess("  ")
	if err == nil {
		t.Fatal("expected error for empty token")
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %T", err)
	}
}

func TestNewIssuerRequiresSecrets(t *testing.T) {
	if _, err := NewIssuer("", "refresh", nil); err == nil {
		t.Fatal("expected missing access secret error")
	}
	if _, err := NewIssuer("access", " ", nil); err == nil {
		t.Fatal("expected missing refresh secret error")
	}
}
