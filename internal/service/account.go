package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/itemdesk/itemdesk/internal/auth"
	"github.com/itemdesk/itemdesk/internal/metrics"
	"github.com/itemdesk/itemdesk/internal/model"
	"github.com/itemdesk/itemdesk/internal/repository"
)

// AccountService handles registration and login.
type AccountService struct {
	users   UserStore
	hasher  *auth.Hasher
	metrics metrics.Recorder
}

// NewAccountService creates a new AccountService.
func NewAccountService(users UserStore, hasher *auth.Hasher, recorder metrics.Recorder) *AccountService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AccountService{
		users:   users,
		hasher:  hasher,
		metrics: recorder,
	}
}

// Credentials are the username and password submitted by a form.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) normalize() (Credentials, error) {
	c.Username = strings.TrimSpace(c.Username)
	c.Password = strings.TrimSpace(c.Password)
	if c.Username == "" || c.Password == "" {
		return c, ErrMissingFields
	}
	return c, nil
}

// Register creates a credential row with an argon2id password hash.
func (s *AccountService) Register(ctx context.Context, in Credentials) (*model.User, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Username) > model.MaxUsernameLength {
		return nil, ErrUsernameTooLong
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			s.metrics.IncRegistrationConflict()
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.metrics.IncRegistration()
	return user, nil
}

// Authenticate returns the user whose stored hash matches the password.
// An unknown username and a wrong password both yield ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, in Credentials) (*model.User, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.VerifyMissing(in.Password)
			s.metrics.IncLogin(false)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password for user %d: %w", user.ID, err)
	}
	if !ok {
		s.metrics.IncLogin(false)
		return nil, ErrInvalidCredentials
	}

	s.metrics.IncLogin(true)
	return user, nil
}
