package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/itemdesk/itemdesk/internal/model"
)

const itemColumns = `id, user_id, name, description, price::text, created_at`

// CreateItem inserts an item and fills in the generated ID and creation time.
// Price is sent in text form and converted to NUMERIC(10,2) by PostgreSQL.
func (r *Repository) CreateItem(ctx context.Context, item *model.Item) error {
	query := `
		INSERT INTO items (user_id, name, description, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, price::text, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		item.UserID,
		item.Name,
		item.Description,
		item.Price,
	).Scan(&item.ID, &item.Price, &item.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

// ListItemsByOwner returns every item owned by userID, newest first.
func (r *Repository) ListItemsByOwner(ctx context.Context, userID int64) ([]*model.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE user_id = $1
		ORDER BY id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*model.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

// scanItem scans a row into an Item.
func scanItem(row pgx.Row) (*model.Item, error) {
	var item model.Item
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Name,
		&item.Description,
		&item.Price,
		&item.CreatedAt,
	)
	return &item, err
}
