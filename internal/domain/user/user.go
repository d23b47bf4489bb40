package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering with an email that is
	// already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on login with a wrong email or
	// password, and on requests carrying an unknown bearer token.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is a registered customer or admin account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Repository defines persistence operations for user accounts.
type Repository interface {
	// Create persists a new user. Returns ErrEmailTaken when the email is
	// already registered.
	Create(ctx context.Context, u *User) error

	// GetByEmail returns the user with the given email.
	// Returns ErrNotFound when no such user exists.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID returns the user with the given ID.
	// Returns ErrNotFound when no such user exists.
	GetByID(ctx context.Context, id string) (*User, error)
}

// TokenRepository stores issued bearer tokens, keyed by their HMAC-SHA256
// hash. Plaintext tokens are never persisted.
type TokenRepository interface {
	// Create persists a token hash for the user.
	Create(ctx context.Context, userID, tokenHash string) error

	// FindUserIDByHash returns the ID of the user owning the token with the
	// given hash. Returns ErrInvalidCredentials when no such token exists.
	FindUserIDByHash(ctx context.Context, tokenHash string) (string, error)
}
