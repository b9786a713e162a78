// Package memory is an in-process stand-in for the Postgres repository,
// used by handler and service tests. It reproduces the constraints the
// schema enforces: unique usernames, identity ordering and NUMERIC(10,2)
// price rendering.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/itemdesk/itemdesk/internal/model"
	"github.com/itemdesk/itemdesk/internal/repository"
)

// Store keeps users and items in memory. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	users  []*model.User
	items  []*model.Item
	nextID int64
	err    error
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// SetErr makes every later call return err until it is reset with nil.
func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// CreateUser inserts a user, rejecting duplicate usernames.
func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}

	for _, u := range s.users {
		if u.Username == user.Username {
			return repository.ErrUsernameExists
		}
	}

	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now().UTC()

	stored := *user
	s.users = append(s.users, &stored)
	return nil
}

// GetUserByUsername finds a user by exact username.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	for _, u := range s.users {
		if u.Username == username {
			found := *u
			return &found, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// CreateItem inserts an item and renders its price the way NUMERIC(10,2) does.
func (s *Store) CreateItem(_ context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}

	s.nextID++
	item.ID = s.nextID
	item.Price = numericText(item.Price)
	item.CreatedAt = time.Now().UTC()

	stored := *item
	s.items = append(s.items, &stored)
	return nil
}

// ListItemsByOwner returns userID's items ordered by id descending.
func (s *Store) ListItemsByOwner(_ context.Context, userID int64) ([]*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	items := make([]*model.Item, 0)
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].IsOwnedBy(userID) {
			found := *s.items[i]
			items = append(items, &found)
		}
	}
	return items, nil
}

// Ping satisfies the readiness check.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// numericText pads a plain decimal to two fractional digits.
func numericText(price string) string {
	whole, frac, _ := strings.Cut(price, ".")
	for len(frac) < 2 {
		frac += "0"
	}
	return whole + "." + frac
}
