// Package token issues and verifies the bearer tokens used by the REST and
// realtime surfaces.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/campuscycle/campuscycle/internal/platform/errors"
)

const (
	// AccessTTL bounds how long an access token stays valid.
	AccessTTL = 15 * time.Minute

	// RefreshTTL bounds how long a refresh token stays valid.
	RefreshTTL = 7 * 24 * time.Hour
)

// accessClaims carries the signed identity for API calls.
type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Issuer mints and verifies HMAC-signed access and refresh tokens.
//
// Access and refresh tokens are signed with independent secrets so a leaked
// refresh secret cannot forge short-lived API credentials and vice versa.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// NewIssuer builds a token issuer from the two signing secrets.
func NewIssuer(accessSecret string, refreshSecret string, now func() time.Time) (*Issuer, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" {
		return nil, errors.New("access token secret is required")
	}
	if refreshSecret == "" {
		return nil, errors.New("refresh token secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           now,
	}, nil
}

// MintAccess signs a short-lived access token for userID.
func (i *Issuer) MintAccess(userID string, role string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	issuedAt := i.now().UTC()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(AccessTTL)),
		},
		Role: strings.TrimSpace(role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// MintRefresh signs a long-lived refresh token for userID.
func (i *Issuer) MintRefresh(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	issuedAt := i.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(RefreshTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and returns the subject and role.
func (i *Issuer) VerifyAccess(tokenString string) (string, string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", "", apperrors.New(apperrors.CodeUnauthorized, "missing token")
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(tokenString, &parsed, func(*jwt.Token) (any, error) {
		return i.accessSecret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.CodeUnauthorized, "invalid token", err)
	}
	subject := strings.TrimSpace(parsed.Subject)
	if subject == "" {
		return "", "", apperrors.New(apperrors.CodeUnauthorized, "invalid token")
	}
	return subject, parsed.Role, nil
}

// VerifyRefresh validates a refresh token and returns the subject.
func (i *Issuer) VerifyRefresh(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", apperrors.New(apperrors.CodeUnauthorized, "missing refresh token")
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &parsed, func(*jwt.Token) (any, error) {
		return i.refreshSecret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnauthorized, "invalid refresh token", err)
	}
	subject := strings.TrimSpace(parsed.Subject)
	if subject == "" {
		return "", apperrors.New(apperrors.CodeUnauthorized, "invalid refresh token")
	}
	return subject, nil
}
