package user

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service handles account registration, login, and bearer token
// authentication. Tokens are opaque random values; only their HMAC-SHA256
// hash (keyed with a server-side pepper) is stored, so a database leak does
// not expose usable tokens.
type Service struct {
	users  Repository
	tokens TokenRepository
	pepper []byte
}

// NewService creates a user Service with the given repositories and HMAC pepper.
func NewService(users Repository, tokens TokenRepository, pepper []byte) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		pepper: pepper,
	}
}

// Register creates a new account and issues a bearer token for it.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", errors.Wrap(err, "hash password")
	}

	u := &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies the credentials and issues a fresh bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", errors.Wrap(err, "get user")
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Authenticate resolves a bearer token to the user it belongs to.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	userID, err := s.tokens.FindUserIDByHash(ctx, s.hashToken(token))
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

func (s *Service) issueToken(ctx context.Context, userID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, "generate token")
	}
	token := hex.EncodeToString(raw)

	if err := s.tokens.Create(ctx, userID, s.hashToken(token)); err != nil {
		return "", errors.Wrap(err, "store token")
	}
	return token, nil
}

func (s *Service) hashToken(token string) string {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
