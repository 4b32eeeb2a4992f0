package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ItemRepository defines the interface for item persistence operations
type ItemRepository interface {
	// Create stores a new item and assigns it the next ItemID
	Create(ctx context.Context, item *Item) error

	// GetByID retrieves an item by its ID
	// Returns ErrItemNotFound if it does not exist
	GetByID(ctx context.Context, id ItemID) (*Item, error)

	// Update overwrites a stored item
	Update(ctx context.Context, item *Item) error

	// List retrieves all items, optionally filtered by status
	// If statusFilter is empty, returns all items in ID order
	List(ctx context.Context, statusFilter ItemStatus) ([]*Item, error)
}

// BundleRepository defines the interface for bundle persistence operations
type BundleRepository interface {
	// Create stores a new bundle and assigns it the next BundleID
	Create(ctx context.Context, bundle *Bundle) error

	// GetByID retrieves a bundle by its ID
	// Returns ErrBundleNotFound if it does not exist
	GetByID(ctx context.Context, id BundleID) (*Bundle, error)

	// Update overwrites a stored bundle, including its interest, assignment and payment state
	Update(ctx context.Context, bundle *Bundle) error

	// List retrieves all bundles, optionally filtered by status
	// If statusFilter is empty, returns all bundles in ID order
	List(ctx context.Context, statusFilter BundleStatus) ([]*Bundle, error)
}

// AssetRegistry is the external capability that owns and moves assets.
// A non-nil error from Transfer means the asset did not move.
type AssetRegistry interface {
	Transfer(ctx context.Context, asset AssetRef, from, to Address) error
	OwnerOf(ctx context.Context, asset AssetRef) (Address, error)
}

// Treasury moves funds between participants and the protocol.
// Collect pulls a buyer's payment into protocol custody; Disburse pays out of it.
type Treasury interface {
	Collect(ctx context.Context, from Address, amount decimal.Decimal) error
	Disburse(ctx context.Context, to Address, amount decimal.Decimal) error
}

// EventSink receives observable events. Emit must not block on slow consumers.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}
