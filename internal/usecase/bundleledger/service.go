package bundleledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
)

// CreateBundleInput represents the input for creating a bundle
type CreateBundleInput struct {
	Seller         domain.Address
	ItemIDs        []domain.ItemID
	Price          decimal.Decimal
	RequiredBuyers int
	Name           string // Optional
	Description    string // Optional
}

// BundleLedgerService tracks bundle composition, pricing and lifecycle
type BundleLedgerService struct {
	ItemRepo   domain.ItemRepository
	BundleRepo domain.BundleRepository
	Registry   domain.AssetRegistry
	Custody    domain.Address
	Events     domain.EventSink
	Logger     *logger.Logger
}

// NewBundleLedgerService creates a new BundleLedgerService instance
func NewBundleLedgerService(
	itemRepo domain.ItemRepository,
	bundleRepo domain.BundleRepository,
	registry domain.AssetRegistry,
	custody domain.Address,
	events domain.EventSink,
	log *logger.Logger,
) *BundleLedgerService {
	return &BundleLedgerService{
		ItemRepo:   itemRepo,
		BundleRepo: bundleRepo,
		Registry:   registry,
		Custody:    custody.Normalize(),
		Events:     events,
		Logger:     log,
	}
}

// Create validates and records a new Active bundle
// Logic:
//  1. Structural checks: non-empty, no duplicates, positive buyer count, whole positive price
//  2. Every item must exist, be Listed, belong to the caller and sit in custody
//  3. Save the bundle and emit BundleCreated
//
// Every failure is reported as ErrInvalidBundle.
func (s *BundleLedgerService) Create(ctx context.Context, input CreateBundleInput) (*domain.Bundle, error) {
	seller := input.Seller.Normalize()
	if seller.IsZero() {
		return nil, fmt.Errorf("%w: seller", domain.ErrInvalidAddress)
	}

	bundle := domain.NewBundle(seller, input.ItemIDs, input.Price, input.RequiredBuyers)
	bundle.Name = input.Name
	bundle.Description = input.Description
	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	for _, itemID := range bundle.ItemIDs {
		if err := s.checkEscrowedBy(ctx, itemID, seller); err != nil {
			return nil, err
		}
	}

	if err := s.BundleRepo.Create(ctx, bundle); err != nil {
		return nil, fmt.Errorf("failed to record bundle: %w", err)
	}

	ev := domain.NewEvent(domain.EventBundleCreated)
	ev.BundleID = bundle.ID
	ev.ItemIDs = append([]domain.ItemID(nil), bundle.ItemIDs...)
	ev.Actor = seller
	ev.Amount = bundle.Price
	s.Events.Emit(ctx, ev)

	s.Logger.Info("bundle created",
		"bundle_id", bundle.ID,
		"items", len(bundle.ItemIDs),
		"price", bundle.Price.String(),
		"required_buyers", bundle.RequiredBuyers,
	)
	return bundle, nil
}

// checkEscrowedBy ensures the item is Listed, sold by seller, and held in custody
func (s *BundleLedgerService) checkEscrowedBy(ctx context.Context, itemID domain.ItemID, seller domain.Address) error {
	item, err := s.ItemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return fmt.Errorf("%w: item %d does not exist", domain.ErrInvalidBundle, itemID)
		}
		return err
	}
	if !item.IsListed() {
		return fmt.Errorf("%w: item %d is %s", domain.ErrInvalidBundle, itemID, item.Status)
	}
	if item.Seller != seller {
		return fmt.Errorf("%w: item %d does not belong to %s", domain.ErrInvalidBundle, itemID, seller)
	}

	owner, err := s.Registry.OwnerOf(ctx, item.Asset)
	if err != nil {
		return fmt.Errorf("%w: ownership of item %d unknown: %v", domain.ErrInvalidBundle, itemID, err)
	}
	if owner.Normalize() != s.Custody {
		return fmt.Errorf("%w: item %d is not in escrow", domain.ErrInvalidBundle, itemID)
	}
	return nil
}

// Cancel moves an Active bundle to Cancelled. Its items become withdrawable again
// because only Active bundles lock items.
func (s *BundleLedgerService) Cancel(ctx context.Context, bundleID domain.BundleID, caller domain.Address) (*domain.Bundle, error) {
	bundle, err := s.BundleRepo.GetByID(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	if err := bundle.CheckActive(); err != nil {
		return nil, err
	}

	caller = caller.Normalize()
	for _, itemID := range bundle.ItemIDs {
		item, err := s.ItemRepo.GetByID(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if item.Seller != caller {
			return nil, fmt.Errorf("%w: bundle %d, item %d", domain.ErrNotSellerOfAll, bundleID, itemID)
		}
	}

	bundle.Status = domain.BundleStatusCancelled
	if err := s.BundleRepo.Update(ctx, bundle); err != nil {
		return nil, fmt.Errorf("failed to update bundle: %w", err)
	}

	ev := domain.NewEvent(domain.EventBundleCancelled)
	ev.BundleID = bundle.ID
	ev.Actor = caller
	s.Events.Emit(ctx, ev)

	s.Logger.Info("bundle cancelled", "bundle_id", bundle.ID, "seller", caller)
	return bundle, nil
}
