// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"

	"github.com/itemdesk/itemdesk/internal/model"
)

// Service errors.
var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrUsernameTooLong    = errors.New("username too long")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrItemNameTooLong    = errors.New("item name too long")
	ErrInvalidPrice       = errors.New("invalid price")
)

// UserStore persists credential rows.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// ItemStore persists item rows.
type ItemStore interface {
	CreateItem(ctx context.Context, item *model.Item) error
	ListItemsByOwner(ctx context.Context, userID int64) ([]*model.Item, error)
}

// IsValidationError reports whether err is caused by bad form input
// rather than by storage.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrUsernameTooLong) ||
		errors.Is(err, ErrItemNameTooLong) ||
		errors.Is(err, ErrInvalidPrice)
}
