package seeder

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/bundleledger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/itemledger"
)

// Demo participants
const (
	DemoSeller   = domain.Address("0xdave")
	DemoRegistry = "0xdemo-nft"
)

// DemoBuyers are funded with DemoFunding each
var (
	DemoBuyers  = []domain.Address{"0xalice", "0xbob", "0xcharlie"}
	DemoFunding = decimal.NewFromInt(1000)
)

// DemoBundle defines one bundle to be seeded; Items are 1-based positions in the demo assets
type DemoBundle struct {
	Name           string
	Items          []int
	Price          int64
	RequiredBuyers int
}

// DemoBundles overlap on purpose: every asset appears in several bundles
var DemoBundles = []DemoBundle{
	{Name: "Bundle AB", Items: []int{1, 2}, Price: 150, RequiredBuyers: 2},
	{Name: "Bundle BC", Items: []int{2, 3}, Price: 160, RequiredBuyers: 2},
	{Name: "Bundle AC", Items: []int{1, 3}, Price: 170, RequiredBuyers: 2},
	{Name: "Bundle ABC", Items: []int{1, 2, 3}, Price: 200, RequiredBuyers: 3},
}

// Marketplace is the subset of the market the seeder drives
type Marketplace interface {
	ItemList(ctx context.Context, status domain.ItemStatus) ([]*domain.Item, error)
	ListItem(ctx context.Context, input itemledger.ListItemInput) (*domain.Item, error)
	CreateBundle(ctx context.Context, input bundleledger.CreateBundleInput) (*domain.Bundle, error)
}

// Minter creates assets in the asset registry
type Minter interface {
	Mint(asset domain.AssetRef, owner domain.Address)
}

// Funder credits participant balances
type Funder interface {
	Deposit(addr domain.Address, amount decimal.Decimal)
}

// DemoSeeder handles seeding of the demo inventory
type DemoSeeder struct {
	market Marketplace
	minter Minter
	funder Funder
	log    *logger.Logger
}

// NewDemoSeeder creates a new DemoSeeder instance
func NewDemoSeeder(market Marketplace, minter Minter, funder Funder, log *logger.Logger) *DemoSeeder {
	return &DemoSeeder{market: market, minter: minter, funder: funder, log: log}
}

// Seed lists three demo assets and bundles them four ways.
// If the market already has items, it does nothing.
func (s *DemoSeeder) Seed(ctx context.Context) error {
	existing, err := s.market.ItemList(ctx, "")
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.log.Info("demo seed skipped", "items", len(existing))
		return nil
	}

	itemIDs := make([]domain.ItemID, 0, 3)
	for i := 1; i <= 3; i++ {
		asset := domain.AssetRef{Registry: DemoRegistry, AssetID: fmt.Sprint(i)}
		s.minter.Mint(asset, DemoSeller)

		item, err := s.market.ListItem(ctx, itemledger.ListItemInput{Asset: asset, Seller: DemoSeller})
		if err != nil {
			return fmt.Errorf("failed to list demo asset %s: %w", asset, err)
		}
		itemIDs = append(itemIDs, item.ID)
	}

	for _, def := range DemoBundles {
		ids := make([]domain.ItemID, len(def.Items))
		for i, pos := range def.Items {
			ids[i] = itemIDs[pos-1]
		}
		if _, err := s.market.CreateBundle(ctx, bundleledger.CreateBundleInput{
			Seller:         DemoSeller,
			ItemIDs:        ids,
			Price:          decimal.NewFromInt(def.Price),
			RequiredBuyers: def.RequiredBuyers,
			Name:           def.Name,
		}); err != nil {
			return fmt.Errorf("failed to create %s: %w", def.Name, err)
		}
	}

	for _, buyer := range DemoBuyers {
		s.funder.Deposit(buyer, DemoFunding)
	}

	s.log.Info("demo inventory seeded", "items", len(itemIDs), "bundles", len(DemoBundles))
	return nil
}
