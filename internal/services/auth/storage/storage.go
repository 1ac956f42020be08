// Package storage defines persistence contracts for identity state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// Role labels a user's access level.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// Campus stores one school a user can register under.
type Campus struct {
	ID        string
	Name      string
	Code      string
	CreatedAt time.Time
}

// User stores one registered account scoped to a campus.
//
// VerifyToken is non-empty only while the account's email address is
// awaiting verification.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	AvatarURL    string
	GradYear     int
	Role         Role
	CampusID     string
	Verified     bool
	VerifyToken  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStore persists registered accounts.
type UserStore interface {
	PutUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByVerifyToken(ctx context.Context, token string) (User, error)
}

// CampusStore persists the campus directory.
type CampusStore interface {
	PutCampus(ctx context.Context, campus Campus) error
	GetCampus(ctx context.Context, id string) (Campus, error)
	ListCampuses(ctx context.Context) ([]Campus, error)
}
