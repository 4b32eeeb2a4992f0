package itemledger

import (
	"context"
	"fmt"
	"time"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
)

// ListItemInput represents the input for listing an asset
type ListItemInput struct {
	Asset  domain.AssetRef
	Seller domain.Address
}

// ItemLedgerService tracks escrowed assets and their lifecycle
type ItemLedgerService struct {
	ItemRepo   domain.ItemRepository
	BundleRepo domain.BundleRepository
	Registry   domain.AssetRegistry
	Custody    domain.Address // Protocol custody address holding listed assets
	Events     domain.EventSink
	Logger     *logger.Logger
}

// NewItemLedgerService creates a new ItemLedgerService instance
func NewItemLedgerService(
	itemRepo domain.ItemRepository,
	bundleRepo domain.BundleRepository,
	registry domain.AssetRegistry,
	custody domain.Address,
	events domain.EventSink,
	log *logger.Logger,
) *ItemLedgerService {
	return &ItemLedgerService{
		ItemRepo:   itemRepo,
		BundleRepo: bundleRepo,
		Registry:   registry,
		Custody:    custody.Normalize(),
		Events:     events,
		Logger:     log,
	}
}

// List escrows an asset and records it as a Listed item
// Logic:
//  1. Validate the asset reference and seller
//  2. Ask the registry to move the asset from the seller into custody
//  3. Only if the transfer succeeded, record the item and emit ItemListed
func (s *ItemLedgerService) List(ctx context.Context, input ListItemInput) (*domain.Item, error) {
	item := &domain.Item{
		Asset:    input.Asset,
		Seller:   input.Seller.Normalize(),
		Status:   domain.ItemStatusListed,
		ListedAt: time.Now().UTC(),
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := s.Registry.Transfer(ctx, item.Asset, item.Seller, s.Custody); err != nil {
		s.Logger.Warn("escrow transfer failed", "asset", item.Asset.String(), "seller", item.Seller, "err", err)
		return nil, fmt.Errorf("%w: escrow of %s: %v", domain.ErrTransferFailed, item.Asset, err)
	}

	if err := s.ItemRepo.Create(ctx, item); err != nil {
		// Give the asset back; the listing does not exist.
		if rerr := s.Registry.Transfer(ctx, item.Asset, s.Custody, item.Seller); rerr != nil {
			s.Logger.Error("could not return asset after failed listing", "asset", item.Asset.String(), "seller", item.Seller, "err", rerr)
		}
		return nil, fmt.Errorf("failed to record item: %w", err)
	}

	ev := domain.NewEvent(domain.EventItemListed)
	ev.ItemID = item.ID
	ev.Actor = item.Seller
	s.Events.Emit(ctx, ev)

	s.Logger.Info("item listed", "item_id", item.ID, "asset", item.Asset.String(), "seller", item.Seller)
	return item, nil
}

// Withdraw returns a listed item to its seller
// Logic:
//  1. Caller must be the seller and the item must still be Listed
//  2. The item must not belong to any Active bundle
//  3. Transfer the asset back; state changes only after the transfer succeeded
func (s *ItemLedgerService) Withdraw(ctx context.Context, itemID domain.ItemID, caller domain.Address) (*domain.Item, error) {
	item, err := s.ItemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if item.Seller != caller.Normalize() {
		return nil, fmt.Errorf("%w: item %d", domain.ErrNotSeller, itemID)
	}
	if !item.IsListed() {
		return nil, fmt.Errorf("%w: item %d is %s", domain.ErrAlreadySold, itemID, item.Status)
	}

	locked, err := s.IsItemInActiveBundle(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, fmt.Errorf("%w: item %d", domain.ErrItemLocked, itemID)
	}

	if err := s.Registry.Transfer(ctx, item.Asset, s.Custody, item.Seller); err != nil {
		s.Logger.Warn("withdrawal transfer failed", "item_id", itemID, "err", err)
		return nil, fmt.Errorf("%w: withdrawal of item %d: %v", domain.ErrTransferFailed, itemID, err)
	}

	item.Status = domain.ItemStatusWithdrawn
	if err := s.ItemRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	ev := domain.NewEvent(domain.EventItemWithdrawn)
	ev.ItemID = item.ID
	ev.Actor = item.Seller
	s.Events.Emit(ctx, ev)

	s.Logger.Info("item withdrawn", "item_id", item.ID, "seller", item.Seller)
	return item, nil
}

// IsItemInActiveBundle reports whether any Active bundle references the item.
// Cancelled and Completed bundles never lock items.
func (s *ItemLedgerService) IsItemInActiveBundle(ctx context.Context, itemID domain.ItemID) (bool, error) {
	bundles, err := s.BundleRepo.List(ctx, domain.BundleStatusActive)
	if err != nil {
		return false, fmt.Errorf("failed to list active bundles: %w", err)
	}
	for _, b := range bundles {
		if b.HasItem(itemID) {
			return true, nil
		}
	}
	return false, nil
}
