package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/instrument-haven/backend/internal/domain/user"
)

const (
	createUserSQL = `INSERT INTO users (id, name, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5)`

	getUserByEmailSQL = `SELECT id, name, email, password_hash, is_admin, created_at
		FROM users WHERE email = $1`

	getUserByIDSQL = `SELECT id, name, email, password_hash, is_admin, created_at
		FROM users WHERE id = $1`

	createTokenSQL = `INSERT INTO auth_tokens (id, user_id, token_hash)
		VALUES (gen_random_uuid(), $1, $2)`

	findTokenUserSQL = `UPDATE auth_tokens SET last_used_at = now()
		WHERE token_hash = $1 RETURNING user_id`
)

var (
	_ user.Repository      = (*UserRepository)(nil)
	_ user.TokenRepository = (*TokenRepository)(nil)
)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	db *DB
}

// NewUserRepository returns a UserRepository that uses the given DB.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a new user, translating the unique email violation into
// user.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.db.q(ctx).Exec(ctx, createUserSQL,
		u.ID, u.Name, u.Email, u.PasswordHash, u.IsAdmin,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

// GetByEmail returns the user with the given email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

// GetByID returns the user with the given ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

func (r *UserRepository) getOne(ctx context.Context, sql, arg string) (*user.User, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	return u, err
}

// TokenRepository implements user.TokenRepository backed by PostgreSQL.
type TokenRepository struct {
	db *DB
}

// NewTokenRepository returns a TokenRepository that uses the given DB.
func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create persists a token hash for the user.
func (r *TokenRepository) Create(ctx context.Context, userID, tokenHash string) error {
	_, err := r.db.q(ctx).Exec(ctx, createTokenSQL, userID, tokenHash)
	if err != nil {
		return fmt.Errorf("creating auth token: %w", err)
	}
	return nil
}

// FindUserIDByHash resolves a token hash to its owner, stamping last_used_at.
func (r *TokenRepository) FindUserIDByHash(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := r.db.q(ctx).QueryRow(ctx, findTokenUserSQL, tokenHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", user.ErrInvalidCredentials
		}
		return "", fmt.Errorf("finding auth token: %w", err)
	}
	return userID, nil
}
