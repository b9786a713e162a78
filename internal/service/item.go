package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/itemdesk/itemdesk/internal/metrics"
	"github.com/itemdesk/itemdesk/internal/model"
)

// ItemService handles item creation and listing.
type ItemService struct {
	items   ItemStore
	metrics metrics.Recorder
}

// NewItemService creates a new ItemService.
func NewItemService(items ItemStore, recorder metrics.Recorder) *ItemService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ItemService{items: items, metrics: recorder}
}

// CreateItemInput defines input for creating an item.
type CreateItemInput struct {
	Name        string
	Description string
	Price       string
}

// Create validates the input and stores an item owned by ownerID.
func (s *ItemService) Create(ctx context.Context, ownerID int64, in CreateItemInput) (*model.Item, error) {
	item, err := buildItem(ownerID, in)
	if err != nil {
		return nil, err
	}

	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.metrics.IncItemCreated()
	return item, nil
}

// List returns the owner's items, newest first.
func (s *ItemService) List(ctx context.Context, ownerID int64) ([]*model.Item, error) {
	items, err := s.items.ListItemsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func buildItem(ownerID int64, in CreateItemInput) (*model.Item, error) {
	name := strings.TrimSpace(in.Name)
	price := model.NormalizePrice(in.Price)

	if name == "" || price == "" {
		return nil, ErrMissingFields
	}
	if utf8.RuneCountInString(name) > model.MaxItemNameLength {
		return nil, ErrItemNameTooLong
	}
	if !model.IsValidPrice(price) {
		return nil, ErrInvalidPrice
	}

	owner := ownerID
	return &model.Item{
		UserID:      &owner,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Price:       price,
	}, nil
}
