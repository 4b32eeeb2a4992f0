package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

// bundleRepository implements domain.BundleRepository.
// Interest, assignment and payment state lives in bundle_buyers, one row per buyer.
type bundleRepository struct {
	db *DB
}

// NewBundleRepository creates a new bundle repository
func NewBundleRepository(db *DB) domain.BundleRepository {
	return &bundleRepository{db: db}
}

// Create inserts a bundle with its buyers in a database transaction
func (r *bundleRepository) Create(ctx context.Context, bundle *domain.Bundle) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		INSERT INTO bundles (name, description, seller, item_ids, price, required_buyers, status, has_assignment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err = dbTx.QueryRowContext(ctx, query,
		bundle.Name,
		bundle.Description,
		string(bundle.Seller),
		pq.Array(toInt64s(bundle.ItemIDs)),
		bundle.Price.String(),
		bundle.RequiredBuyers,
		string(bundle.Status),
		bundle.Assignment != nil,
		bundle.CreatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	bundle.ID = domain.BundleID(id)

	if err := insertBuyers(ctx, dbTx, bundle); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a bundle and its buyers
func (r *bundleRepository) GetByID(ctx context.Context, id domain.BundleID) (*domain.Bundle, error) {
	query := `
		SELECT id, name, description, seller, item_ids, price, required_buyers, status, has_assignment, created_at
		FROM bundles
		WHERE id = $1
	`

	bundle, err := scanBundle(r.db.QueryRowContext(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", domain.ErrBundleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get bundle by ID: %w", err)
	}

	if err := r.loadBuyers(ctx, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// Update writes the bundle status and replaces its buyer rows.
// Composition columns are never rewritten.
func (r *bundleRepository) Update(ctx context.Context, bundle *domain.Bundle) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx, `
		UPDATE bundles
		SET status = $2, has_assignment = $3
		WHERE id = $1
	`, int64(bundle.ID), string(bundle.Status), bundle.Assignment != nil)
	if err != nil {
		return fmt.Errorf("failed to update bundle: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrBundleNotFound, bundle.ID)
	}

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM bundle_buyers WHERE bundle_id = $1`, int64(bundle.ID)); err != nil {
		return fmt.Errorf("failed to clear bundle buyers: %w", err)
	}
	if err := insertBuyers(ctx, dbTx, bundle); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List retrieves bundles in ID order, optionally filtered by status
func (r *bundleRepository) List(ctx context.Context, statusFilter domain.BundleStatus) ([]*domain.Bundle, error) {
	query := `
		SELECT id, name, description, seller, item_ids, price, required_buyers, status, has_assignment, created_at
		FROM bundles
		WHERE $1::text = '' OR status = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, string(statusFilter))
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}

	var bundles []*domain.Bundle
	for rows.Next() {
		bundle, err := scanBundle(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan bundle: %w", err)
		}
		bundles = append(bundles, bundle)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bundles: %w", err)
	}

	for _, bundle := range bundles {
		if err := r.loadBuyers(ctx, bundle); err != nil {
			return nil, err
		}
	}
	return bundles, nil
}

func (r *bundleRepository) loadBuyers(ctx context.Context, bundle *domain.Bundle) error {
	query := `
		SELECT buyer, item_ids, assigned_value, paid
		FROM bundle_buyers
		WHERE bundle_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, int64(bundle.ID))
	if err != nil {
		return fmt.Errorf("failed to load bundle buyers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var buyer string
		var itemIDs []int64
		var value sql.NullString
		var paid bool
		if err := rows.Scan(&buyer, pq.Array(&itemIDs), &value, &paid); err != nil {
			return fmt.Errorf("failed to scan bundle buyer: %w", err)
		}

		addr := domain.Address(buyer)
		bundle.Buyers = append(bundle.Buyers, addr)
		bundle.Interests[addr] = fromInt64s(itemIDs)
		if paid {
			bundle.Paid[addr] = true
		}
		if value.Valid && bundle.Assignment != nil {
			v, err := decimal.NewFromString(value.String)
			if err != nil {
				return fmt.Errorf("failed to parse assigned_value: %w", err)
			}
			bundle.Assignment[addr] = v
		}
	}
	return rows.Err()
}

func insertBuyers(ctx context.Context, dbTx *sql.Tx, bundle *domain.Bundle) error {
	query := `
		INSERT INTO bundle_buyers (bundle_id, buyer, position, item_ids, assigned_value, paid)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for pos, buyer := range bundle.Buyers {
		var value interface{}
		if v, ok := bundle.AssignedValue(buyer); ok {
			value = v.String()
		}
		_, err := dbTx.ExecContext(ctx, query,
			int64(bundle.ID),
			string(buyer),
			pos,
			pq.Array(toInt64s(bundle.Interests[buyer])),
			value,
			bundle.Paid[buyer],
		)
		if err != nil {
			return fmt.Errorf("failed to insert bundle buyer: %w", err)
		}
	}
	return nil
}

func scanBundle(row rowScanner) (*domain.Bundle, error) {
	var (
		id            int64
		seller        string
		itemIDs       []int64
		priceStr      string
		status        string
		hasAssignment bool
	)
	b := domain.NewBundle("", nil, decimal.Zero, 0)
	if err := row.Scan(&id, &b.Name, &b.Description, &seller, pq.Array(&itemIDs), &priceStr, &b.RequiredBuyers, &status, &hasAssignment, &b.CreatedAt); err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}

	b.ID = domain.BundleID(id)
	b.Seller = domain.Address(seller)
	b.ItemIDs = fromInt64s(itemIDs)
	b.Price = price
	b.Status = domain.BundleStatus(status)
	if hasAssignment {
		b.Assignment = make(map[domain.Address]decimal.Decimal)
	}
	return b, nil
}

func toInt64s(ids []domain.ItemID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func fromInt64s(ids []int64) []domain.ItemID {
	out := make([]domain.ItemID, len(ids))
	for i, id := range ids {
		out[i] = domain.ItemID(id)
	}
	return out
}
