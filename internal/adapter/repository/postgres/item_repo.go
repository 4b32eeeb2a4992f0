package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

// itemRepository implements domain.ItemRepository
type itemRepository struct {
	db *DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *DB) domain.ItemRepository {
	return &itemRepository{db: db}
}

// Create inserts an item; the database assigns its ID
func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	query := `
		INSERT INTO items (registry, asset_id, seller, status, listed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		item.Asset.Registry,
		item.Asset.AssetID,
		string(item.Seller),
		string(item.Status),
		item.ListedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	item.ID = domain.ItemID(id)
	return nil
}

// GetByID retrieves an item by its ID
func (r *itemRepository) GetByID(ctx context.Context, id domain.ItemID) (*domain.Item, error) {
	query := `
		SELECT id, registry, asset_id, seller, status, listed_at
		FROM items
		WHERE id = $1
	`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, id)
		}
		return nil, fmt.Errorf("failed to get item by ID: %w", err)
	}
	return item, nil
}

// Update overwrites the mutable fields of an item
func (r *itemRepository) Update(ctx context.Context, item *domain.Item) error {
	query := `
		UPDATE items
		SET status = $2
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, int64(item.ID), string(item.Status))
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrItemNotFound, item.ID)
	}
	return nil
}

// List retrieves items in ID order, optionally filtered by status
func (r *itemRepository) List(ctx context.Context, statusFilter domain.ItemStatus) ([]*domain.Item, error) {
	query := `
		SELECT id, registry, asset_id, seller, status, listed_at
		FROM items
		WHERE $1::text = '' OR status = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, string(statusFilter))
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	var id int64
	var seller, status string
	if err := row.Scan(&id, &item.Asset.Registry, &item.Asset.AssetID, &seller, &status, &item.ListedAt); err != nil {
		return nil, err
	}
	item.ID = domain.ItemID(id)
	item.Seller = domain.Address(seller)
	item.Status = domain.ItemStatus(status)
	return &item, nil
}
