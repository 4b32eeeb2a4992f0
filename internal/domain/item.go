package domain

import (
	"context"
	"fmt"
	"time"
)

// ItemStatus represents the lifecycle state of an escrowed item
type ItemStatus string

const (
	ItemStatusListed    ItemStatus = "LISTED"
	ItemStatusSold      ItemStatus = "SOLD"
	ItemStatusWithdrawn ItemStatus = "WITHDRAWN" // Returned to the seller, never sold
)

// Item represents an asset held in protocol custody.
// An item is Listed while escrowed; Sold and Withdrawn are both terminal.
type Item struct {
	ID       ItemID
	Asset    AssetRef
	Seller   Address
	Status   ItemStatus
	ListedAt time.Time
}

// IsListed reports whether the item is still escrowed and available
func (i *Item) IsListed() bool {
	return i.Status == ItemStatusListed
}

// Validate ensures the item adheres to domain rules
func (i *Item) Validate() error {
	if i.Asset.Registry == "" || i.Asset.AssetID == "" {
		return fmt.Errorf("%w: asset reference must name a registry and an asset", ErrInvalidAddress)
	}
	if i.Seller.IsZero() {
		return fmt.Errorf("%w: seller", ErrInvalidAddress)
	}
	switch i.Status {
	case ItemStatusListed, ItemStatusSold, ItemStatusWithdrawn:
	default:
		return fmt.Errorf("unknown item status %q", i.Status)
	}
	return nil
}

// Clone returns a copy that shares no memory with i
func (i *Item) Clone() *Item {
	c := *i
	return &c
}

// CheckItemsListed fails with ErrAlreadySold when any of ids is no longer Listed,
// for example after an overlapping bundle sold it.
func CheckItemsListed(ctx context.Context, repo ItemRepository, ids []ItemID) error {
	for _, id := range ids {
		item, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !item.IsListed() {
			return fmt.Errorf("%w: item %d is %s", ErrAlreadySold, id, item.Status)
		}
	}
	return nil
}
