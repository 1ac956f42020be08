// Package app implements identity and access behavior: registration, email
// verification, credential login, token refresh, and profile management.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/campuscycle/campuscycle/internal/platform/errors"
	"github.com/campuscycle/campuscycle/internal/platform/id"
	"github.com/campuscycle/campuscycle/internal/platform/requestctx"
	"github.com/campuscycle/campuscycle/internal/services/auth/storage"
	"github.com/campuscycle/campuscycle/internal/services/auth/token"
)

const (
	minPasswordLength = 8
	bcryptCost        = 10
)

// PublicProfile is the subset of a user shared with other participants.
type PublicProfile struct {
	ID        string
	Name      string
	AvatarURL string
}

// Session is the result of a successful login.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         storage.User
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	CampusID string
	GradYear int
}

// UpdateProfileInput carries a partial profile update. Nil fields are left
// unchanged.
type UpdateProfileInput struct {
	Name      *string
	GradYear  *int
	AvatarURL *string
}

// Service implements identity and access operations over the user store.
type Service struct {
	users    storage.UserStore
	campuses storage.CampusStore
	tokens   *token.Issuer
	mailer   Mailer
	appURL   string
	now      func() time.Time
}

// NewService wires an identity service.
//
// appURL is the public base URL used to compose verification links. A nil
// mailer falls back to logging links, matching development behavior.
func NewService(users storage.UserStore, campuses storage.CampusStore, tokens *token.Issuer, mailer Mailer, appURL string) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if campuses == nil {
		return nil, errors.New("campus store is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if mailer == nil {
		mailer = LogMailer{}
	}
	appURL = strings.TrimRight(strings.TrimSpace(appURL), "/")
	if appURL == "" {
		appURL = "http://localhost:3000"
	}
	return &Service{
		users:    users,
		campuses: campuses,
		tokens:   tokens,
		mailer:   mailer,
		appURL:   appURL,
		now:      time.Now,
	}, nil
}

// Register creates an unverified account and sends the verification link.
func (s *Service) Register(ctx context.Context, input RegisterInput) error {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.New(apperrors.CodeValidation, "invalid email address")
	}
	if !strings.HasSuffix(email, ".edu") {
		return apperrors.New(apperrors.CodeAuthEmailNotEdu, "must use .edu email address")
	}
	if len(input.Password) < minPasswordLength {
		return apperrors.New(apperrors.CodeValidation, "password must be at least 8 characters")
	}
	if input.GradYear != 0 && (input.GradYear < 1900 || input.GradYear > 2100) {
		return apperrors.New(apperrors.CodeValidation, "grad year out of range")
	}

	if _, err := s.campuses.GetCampus(ctx, input.CampusID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeAuthInvalidCampus, "invalid campus")
		}
		return fmt.Errorf("check campus: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	userID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("new user id: %w", err)
	}
	verifyToken, err := id.NewID()
	if err != nil {
		return fmt.Errorf("new verify token: %w", err)
	}

	user := storage.User{
		ID:           userID,
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(input.Name),
		GradYear:     input.GradYear,
		Role:         storage.RoleStudent,
		CampusID:     strings.TrimSpace(input.CampusID),
		VerifyToken:  verifyToken,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.PutUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return apperrors.New(apperrors.CodeAuthEmailTaken, "email already registered")
		}
		return fmt.Errorf("put user: %w", err)
	}

	link := fmt.Sprintf("%s/auth/verify?token=%s", s.appURL, verifyToken)
	if err := s.mailer.SendVerification(ctx, email, link); err != nil {
		// Registration already persisted; the link can be re-sent by an
		// operator, so delivery failure is logged rather than surfaced.
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, verifyToken string) error {
	verifyToken = strings.TrimSpace(verifyToken)
	if verifyToken == "" {
		return apperrors.New(apperrors.CodeValidation, "token required")
	}
	user, err := s.users.GetUserByVerifyToken(ctx, verifyToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeValidation, "invalid or expired token")
		}
		return fmt.Errorf("lookup verify token: %w", err)
	}

	user.Verified = true
	user.VerifyToken = ""
	user.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	return nil
}

// Login checks credentials and mints an access/refresh token pair.
func (s *Service) Login(ctx context.Context, email string, password string) (Session, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, apperrors.New(apperrors.CodeAuthInvalidCredential, "invalid email or password")
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Verified {
		return Session{}, apperrors.New(apperrors.CodeAuthEmailUnverified, "email not verified")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, apperrors.New(apperrors.CodeAuthInvalidCredential, "invalid email or password")
	}

	accessToken, err := s.tokens.MintAccess(user.ID, string(user.Role))
	if err != nil {
		return Session{}, fmt.Errorf("mint access token: %w", err)
	}
	refreshToken, err := s.tokens.MintRefresh(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("mint refresh token: %w", err)
	}
	return Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", apperrors.New(apperrors.CodeUnauthorized, "invalid token")
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if !user.Verified {
		return "", apperrors.New(apperrors.CodeUnauthorized, "invalid token")
	}
	accessToken, err := s.tokens.MintAccess(user.ID, string(user.Role))
	if err != nil {
		return "", fmt.Errorf("mint access token: %w", err)
	}
	return accessToken, nil
}

// VerifyAccess resolves a bearer token to its principal.
//
// The stored account is re-fetched on every call so revoked or unverified
// accounts lose access as soon as storage reflects the change.
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (requestctx.Principal, error) {
	userID, _, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return requestctx.Principal{}, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return requestctx.Principal{}, apperrors.New(apperrors.CodeUnauthorized, "invalid token")
		}
		return requestctx.Principal{}, fmt.Errorf("lookup user: %w", err)
	}
	return requestctx.Principal{
		UserID:   user.ID,
		CampusID: user.CampusID,
		Role:     string(user.Role),
		Verified: user.Verified,
	}, nil
}

// GetUser returns a full account record by id.
func (s *Service) GetUser(ctx context.Context, userID string) (storage.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return storage.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetPublicProfile returns the participant-visible fields for userID.
func (s *Service) GetPublicProfile(ctx context.Context, userID string) (PublicProfile, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return PublicProfile{}, err
	}
	return PublicProfile{
		ID:        user.ID,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
	}, nil
}

// GetCampus returns one campus record.
func (s *Service) GetCampus(ctx context.Context, campusID string) (storage.Campus, error) {
	campus, err := s.campuses.GetCampus(ctx, campusID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Campus{}, apperrors.New(apperrors.CodeNotFound, "campus not found")
		}
		return storage.Campus{}, fmt.Errorf("get campus: %w", err)
	}
	return campus, nil
}

// ListCampuses returns every campus ordered by name.
func (s *Service) ListCampuses(ctx context.Context) ([]storage.Campus, error) {
	campuses, err := s.campuses.ListCampuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list campuses: %w", err)
	}
	return campuses, nil
}

// UpdateProfile applies a partial profile update and returns the new record.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (storage.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return storage.User{}, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || len(name) > 100 {
			return storage.User{}, apperrors.New(apperrors.CodeValidation, "name must be 1-100 characters")
		}
		user.Name = name
	}
	if input.GradYear != nil {
		if *input.GradYear < 1900 || *input.GradYear > 2100 {
			return storage.User{}, apperrors.New(apperrors.CodeValidation, "grad year out of range")
		}
		user.GradYear = *input.GradYear
	}
	if input.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*input.AvatarURL)
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return storage.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ChangePassword rotates the account password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID string, currentPassword string, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.New(apperrors.CodeValidation, "password must be at least 8 characters")
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return apperrors.New(apperrors.CodeAuthInvalidCredential, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
