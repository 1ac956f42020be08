package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campuscycle/campuscycle/internal/services/auth/storage"
)

const userColumns = `id, email, password_hash, name, avatar_url, grad_year,
       role, campus_id, verified, verify_token, created_at, updated_at`

// PutUser inserts one account record.
// Returns storage.ErrAlreadyExists when the email is already registered.
func (s *Store) PutUser(ctx context.Context, user storage.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	user.Email = strings.TrimSpace(strings.ToLower(user.Email))
	if user.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if user.Email == "" {
		return fmt.Errorf("email is required")
	}
	if user.CampusID == "" {
		return fmt.Errorf("campus id is required")
	}
	if user.Role == "" {
		user.Role = storage.RoleStudent
	}
	createdAt := user.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := user.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.AvatarURL,
		user.GradYear,
		string(user.Role),
		user.CampusID,
		boolToInt(user.Verified),
		nullableToken(user.VerifyToken),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// UpdateUser rewrites the mutable fields of an existing account.
func (s *Store) UpdateUser(ctx context.Context, user storage.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	if user.ID == "" {
		return fmt.Errorf("user id is required")
	}
	updatedAt := user.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET
		    password_hash = ?,
		    name = ?,
		    avatar_url = ?,
		    grad_year = ?,
		    role = ?,
		    verified = ?,
		    verify_token = ?,
		    updated_at = ?
		  WHERE id = ?`,
		user.PasswordHash,
		user.Name,
		user.AvatarURL,
		user.GradYear,
		string(user.Role),
		boolToInt(user.Verified),
		nullableToken(user.VerifyToken),
		toMillis(updatedAt),
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetUser returns one account by id.
func (s *Store) GetUser(ctx context.Context, id string) (storage.User, error) {
	return s.getUserWhere(ctx, "id = ?", strings.TrimSpace(id))
}

// GetUserByEmail returns one account by its lowercase email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	return s.getUserWhere(ctx, "email = ?", strings.TrimSpace(strings.ToLower(email)))
}

// GetUserByVerifyToken returns the account holding a pending verification token.
func (s *Store) GetUserByVerifyToken(ctx context.Context, token string) (storage.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return storage.User{}, storage.ErrNotFound
	}
	return s.getUserWhere(ctx, "verify_token = ?", token)
}

func (s *Store) getUserWhere(ctx context.Context, where string, arg string) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.User{}, fmt.Errorf("storage is not configured")
	}
	if arg == "" {
		return storage.User{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg)

	var user storage.User
	var role string
	var verified int
	var verifyToken sql.NullString
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.AvatarURL,
		&user.GradYear,
		&role,
		&user.CampusID,
		&verified,
		&verifyToken,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("get user: %w", err)
	}

	user.Role = storage.Role(role)
	user.Verified = verified != 0
	user.VerifyToken = verifyToken.String
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullableToken(token string) any {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return token
}

var _ storage.UserStore = (*Store)(nil)
