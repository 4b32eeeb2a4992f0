package dashboard

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

// SummaryResult represents the aggregate marketplace counts
type SummaryResult struct {
	TotalItems       int
	TotalBundles     int
	ActiveItems      int // Items still Listed
	ActiveBundles    int
	CompletedBundles int
}

// BuyerInterest is one buyer's view of a bundle
type BuyerInterest struct {
	Buyer         domain.Address
	Items         []domain.ItemID
	AssignedValue decimal.Decimal
	HasValue      bool
	HasPaid       bool
}

// DashboardService handles read-only marketplace views
type DashboardService struct {
	ItemRepo   domain.ItemRepository
	BundleRepo domain.BundleRepository
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(itemRepo domain.ItemRepository, bundleRepo domain.BundleRepository) *DashboardService {
	return &DashboardService{
		ItemRepo:   itemRepo,
		BundleRepo: bundleRepo,
	}
}

// GetSummary calculates the marketplace summary
// Logic:
//   - Items: all items, and those still Listed
//   - Bundles: all bundles, Active ones and Completed ones
func (s *DashboardService) GetSummary(ctx context.Context) (*SummaryResult, error) {
	items, err := s.ItemRepo.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	bundles, err := s.BundleRepo.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}

	result := &SummaryResult{TotalItems: len(items), TotalBundles: len(bundles)}
	for _, item := range items {
		if item.IsListed() {
			result.ActiveItems++
		}
	}
	for _, b := range bundles {
		switch b.Status {
		case domain.BundleStatusActive:
			result.ActiveBundles++
		case domain.BundleStatusCompleted:
			result.CompletedBundles++
		}
	}
	return result, nil
}

// GetBuyerInterests lists every interested buyer of a bundle in interest order,
// with their requested items, assigned value and payment status
func (s *DashboardService) GetBuyerInterests(ctx context.Context, bundleID domain.BundleID) ([]BuyerInterest, error) {
	bundle, err := s.BundleRepo.GetByID(ctx, bundleID)
	if err != nil {
		return nil, err
	}

	interests := make([]BuyerInterest, 0, len(bundle.Buyers))
	for _, buyer := range bundle.Buyers {
		value, ok := bundle.AssignedValue(buyer)
		interests = append(interests, BuyerInterest{
			Buyer:         buyer,
			Items:         append([]domain.ItemID(nil), bundle.Interests[buyer]...),
			AssignedValue: value,
			HasValue:      ok,
			HasPaid:       bundle.Paid[buyer],
		})
	}
	return interests, nil
}
