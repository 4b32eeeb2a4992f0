package interest

import (
	"context"
	"fmt"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
)

// InterestService records which buyers want which items of a bundle
type InterestService struct {
	ItemRepo   domain.ItemRepository
	BundleRepo domain.BundleRepository
	Events     domain.EventSink
	Logger     *logger.Logger
}

// NewInterestService creates a new InterestService instance
func NewInterestService(itemRepo domain.ItemRepository, bundleRepo domain.BundleRepository, events domain.EventSink, log *logger.Logger) *InterestService {
	return &InterestService{
		ItemRepo:   itemRepo,
		BundleRepo: bundleRepo,
		Events:     events,
		Logger:     log,
	}
}

// ExpressInterest registers buyer as interested in a subset of the bundle's items
// Logic:
//  1. Bundle must be Active and every bundle item still Listed; an overlapping bundle may have sold one
//  2. Buyer must be new to the bundle, and the bundle must not have reached quorum
//  3. Items must be non-empty and all part of the bundle (repeats are collapsed)
//  4. Append the buyer (first-expressed-first) and emit BuyerInterested
//  5. Emit BundleReadyForPurchase when the buyer count reaches the required count
func (s *InterestService) ExpressInterest(ctx context.Context, bundleID domain.BundleID, buyer domain.Address, items []domain.ItemID) (*domain.Bundle, error) {
	bundle, err := s.BundleRepo.GetByID(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	if err := bundle.CheckActive(); err != nil {
		return nil, err
	}
	if err := domain.CheckItemsListed(ctx, s.ItemRepo, bundle.ItemIDs); err != nil {
		return nil, fmt.Errorf("bundle %d: %w", bundleID, err)
	}

	buyer = buyer.Normalize()
	if buyer.IsZero() {
		return nil, fmt.Errorf("%w: buyer", domain.ErrInvalidAddress)
	}
	if bundle.IsInterested(buyer) {
		return nil, fmt.Errorf("%w: %s in bundle %d", domain.ErrDuplicateInterest, buyer, bundleID)
	}
	if bundle.HasQuorum() {
		return nil, fmt.Errorf("%w: bundle %d already has %d buyers", domain.ErrQuorumReached, bundleID, len(bundle.Buyers))
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: bundle %d", domain.ErrEmptyInterest, bundleID)
	}

	wanted := make([]domain.ItemID, 0, len(items))
	seen := make(map[domain.ItemID]bool, len(items))
	for _, id := range items {
		if !bundle.HasItem(id) {
			return nil, fmt.Errorf("%w: item %d, bundle %d", domain.ErrItemNotInBundle, id, bundleID)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		wanted = append(wanted, id)
	}

	bundle.Buyers = append(bundle.Buyers, buyer)
	bundle.Interests[buyer] = wanted
	if err := s.BundleRepo.Update(ctx, bundle); err != nil {
		return nil, fmt.Errorf("failed to record interest: %w", err)
	}

	ev := domain.NewEvent(domain.EventBuyerInterested)
	ev.BundleID = bundleID
	ev.Actor = buyer
	ev.ItemIDs = append([]domain.ItemID(nil), wanted...)
	s.Events.Emit(ctx, ev)
	s.Logger.Info("buyer interested", "bundle_id", bundleID, "buyer", buyer, "items", len(wanted))

	if len(bundle.Buyers) == bundle.RequiredBuyers {
		ready := domain.NewEvent(domain.EventBundleReady)
		ready.BundleID = bundleID
		ready.Buyers = append([]domain.Address(nil), bundle.Buyers...)
		s.Events.Emit(ctx, ready)
		s.Logger.Info("bundle ready for purchase", "bundle_id", bundleID, "buyers", len(bundle.Buyers))
	}

	return bundle, nil
}
