// Package identity registers users, verifies credentials and issues access
// tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/manishdait/book-review-api/internal/errors"
	"github.com/manishdait/book-review-api/internal/logging"
	"github.com/manishdait/book-review-api/internal/storage"
	"github.com/manishdait/book-review-api/internal/domain/user"
)

// Session is the result of a successful registration or authentication.
type Session struct {
	Username    string
	AccessToken string
}

// Service manages user registration and credential verification.
type Service struct {
	users  storage.UserStore
	secret []byte
	log    *logging.Logger
}

// New constructs an identity service. The secret signs issued tokens and must
// not be empty.
func New(users storage.UserStore, secret string, log *logging.Logger) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("token signing secret is required")
	}
	if log == nil {
		log = logging.NewDefault("identity")
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		log:    log,
	}, nil
}

// Register stores a new user with a hashed password and issues a token bound
// to the new identity.
func (s *Service) Register(ctx context.Context, username, email, password string) (Session, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" || email == "" || password == "" {
		return Session{}, apperrors.Validation("username, email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.WithError(err).Error("password hashing failed")
		return Session{}, apperrors.Internal("failed to register user", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			s.log.WithField("username", username).Warn("registration rejected: identity already exists")
			return Session{}, apperrors.Conflict("username or email already registered")
		}
		s.log.WithError(err).Error("user creation failed")
		return Session{}, apperrors.Internal("failed to register user", err)
	}

	token, err := s.issueToken(created.ID)
	if err != nil {
		s.log.WithError(err).Error("token issuance failed")
		return Session{}, apperrors.Internal("failed to register user", err)
	}

	s.log.WithField("user_id", created.ID).
		WithField("username", username).
		Info("user registered")
	return Session{Username: created.Username, AccessToken: token}, nil
}

// Authenticate verifies a username/password pair and issues a fresh token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, apperrors.NotFound("user not found")
		}
		s.log.WithError(err).Error("user lookup failed")
		return Session{}, apperrors.Internal("failed to authenticate user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.log.WithField("username", username).Warn("authentication rejected: invalid password")
		return Session{}, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		s.log.WithError(err).Error("token issuance failed")
		return Session{}, apperrors.Internal("failed to authenticate user", err)
	}

	s.log.WithField("user_id", u.ID).Info("user authenticated")
	return Session{Username: u.Username, AccessToken: token}, nil
}
