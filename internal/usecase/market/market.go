// Package market is the single coordinating component of the escrow protocol.
// It owns the ledger lock and serializes every state-mutating operation.
package market

import (
	"context"
	"errors"
	"sync"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/access"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/bundleledger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/dashboard"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/interest"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/itemledger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/settlement"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/valuation"
)

// ErrNoAssetDirectory is returned by OwnedAssets when the registry cannot list holdings
var ErrNoAssetDirectory = errors.New("asset registry does not support ownership listing")

// AssetDirectory is implemented by registries that can list the assets an address holds
type AssetDirectory interface {
	OwnedBy(ctx context.Context, addr domain.Address) ([]domain.AssetRef, error)
}

// Deps holds the ports and settings a Market is built from
type Deps struct {
	ItemRepo   domain.ItemRepository
	BundleRepo domain.BundleRepository
	Registry   domain.AssetRegistry
	Treasury   domain.Treasury
	Events     domain.EventSink

	Custody domain.Address // Address that holds escrowed assets
	Owner   domain.Address // Protocol owner; may change the oracle
	Oracle  domain.Address // Initial oracle; may be empty

	Logger *logger.Logger
}

// Market exposes every protocol operation behind one lock
type Market struct {
	mu sync.RWMutex

	Items      *itemledger.ItemLedgerService
	Bundles    *bundleledger.BundleLedgerService
	Interest   *interest.InterestService
	Valuation  *valuation.ValuationService
	Settlement *settlement.SettlementService
	Access     *access.AccessControl
	Dashboard  *dashboard.DashboardService
	Directory  AssetDirectory // Nil when the registry cannot list holdings
	Logger     *logger.Logger
}

// New wires the protocol components over the given ports
func New(d Deps) *Market {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	ac := access.NewAccessControl(d.Owner, d.Oracle, d.Events, log.With("component", "access"))

	m := &Market{
		Items:      itemledger.NewItemLedgerService(d.ItemRepo, d.BundleRepo, d.Registry, d.Custody, d.Events, log.With("component", "itemledger")),
		Bundles:    bundleledger.NewBundleLedgerService(d.ItemRepo, d.BundleRepo, d.Registry, d.Custody, d.Events, log.With("component", "bundleledger")),
		Interest:   interest.NewInterestService(d.ItemRepo, d.BundleRepo, d.Events, log.With("component", "interest")),
		Valuation:  valuation.NewValuationService(d.BundleRepo, ac, d.Events, log.With("component", "valuation")),
		Settlement: settlement.NewSettlementService(d.ItemRepo, d.BundleRepo, d.Registry, d.Treasury, d.Custody, d.Events, log.With("component", "settlement")),
		Access:     ac,
		Dashboard:  dashboard.NewDashboardService(d.ItemRepo, d.BundleRepo),
		Logger:     log,
	}
	if dir, ok := d.Registry.(AssetDirectory); ok {
		m.Directory = dir
	}
	return m
}

// ListItem escrows an asset and records it as Listed
func (m *Market) ListItem(ctx context.Context, input itemledger.ListItemInput) (item *domain.Item, err error) {
	err = m.mutate(ctx, "list", func(ctx context.Context) error {
		item, err = m.Items.List(ctx, input)
		return err
	})
	return item, err
}

// WithdrawItem returns an unlocked listed item to its seller
func (m *Market) WithdrawItem(ctx context.Context, itemID domain.ItemID, caller domain.Address) (item *domain.Item, err error) {
	err = m.mutate(ctx, "withdraw", func(ctx context.Context) error {
		item, err = m.Items.Withdraw(ctx, itemID, caller)
		return err
	})
	return item, err
}

// CreateBundle records a new Active bundle over the caller's listed items
func (m *Market) CreateBundle(ctx context.Context, input bundleledger.CreateBundleInput) (bundle *domain.Bundle, err error) {
	err = m.mutate(ctx, "createBundle", func(ctx context.Context) error {
		bundle, err = m.Bundles.Create(ctx, input)
		return err
	})
	return bundle, err
}

// CancelBundle cancels an Active bundle, freeing its items and refunding buyers who already paid
func (m *Market) CancelBundle(ctx context.Context, bundleID domain.BundleID, caller domain.Address) (bundle *domain.Bundle, err error) {
	err = m.mutate(ctx, "cancelBundle", func(ctx context.Context) error {
		if bundle, err = m.Bundles.Cancel(ctx, bundleID, caller); err != nil {
			return err
		}
		m.Settlement.RefundPaid(ctx, bundle)
		return nil
	})
	return bundle, err
}

// ExpressInterest registers a buyer's interest in some of a bundle's items
func (m *Market) ExpressInterest(ctx context.Context, bundleID domain.BundleID, buyer domain.Address, items []domain.ItemID) (bundle *domain.Bundle, err error) {
	err = m.mutate(ctx, "expressInterest", func(ctx context.Context) error {
		bundle, err = m.Interest.ExpressInterest(ctx, bundleID, buyer, items)
		return err
	})
	return bundle, err
}

// RequestAssignment signals the oracle to price a bundle that reached quorum
func (m *Market) RequestAssignment(ctx context.Context, bundleID domain.BundleID, caller domain.Address) error {
	return m.mutate(ctx, "requestAssignment", func(ctx context.Context) error {
		return m.Valuation.RequestAssignment(ctx, bundleID, caller)
	})
}

// SetAssignment records the oracle's fairness values
func (m *Market) SetAssignment(ctx context.Context, assignment domain.Assignment, caller domain.Address) (bundle *domain.Bundle, err error) {
	err = m.mutate(ctx, "setAssignment", func(ctx context.Context) error {
		bundle, err = m.Valuation.SetAssignment(ctx, assignment, caller)
		return err
	})
	return bundle, err
}

// Pay accepts a buyer's payment and settles the bundle when the last required buyer pays
func (m *Market) Pay(ctx context.Context, input settlement.PayInput) (outcome *settlement.Outcome, err error) {
	err = m.mutate(ctx, "pay", func(ctx context.Context) error {
		outcome, err = m.Settlement.Pay(ctx, input)
		return err
	})
	return outcome, err
}

// SetOracle replaces the oracle address; owner only
func (m *Market) SetOracle(ctx context.Context, oracle, caller domain.Address) error {
	return m.mutate(ctx, "setOracle", func(ctx context.Context) error {
		return m.Access.SetOracle(ctx, oracle, caller)
	})
}

// Item returns one item
func (m *Market) Item(ctx context.Context, id domain.ItemID) (item *domain.Item, err error) {
	err = m.read(ctx, func(ctx context.Context) error {
		item, err = m.Items.ItemRepo.GetByID(ctx, id)
		return err
	})
	return item, err
}

// ItemList returns all items, optionally filtered by status
func (m *Market) ItemList(ctx context.Context, status domain.ItemStatus) (items []*domain.Item, err error) {
	err = m.read(ctx, func(ctx context.Context) error {
		items, err = m.Items.ItemRepo.List(ctx, status)
		return err
	})
	return items, err
}

// Bundle returns one bundle
func (m *Market) Bundle(ctx context.Context, id domain.BundleID) (bundle *domain.Bundle, err error) {
	err = m.read(ctx, func(ctx context.Context) error {
		bundle, err = m.Bundles.BundleRepo.GetByID(ctx, id)
		return err
	})
	return bundle, err
}

// BundleList returns all bundles, optionally filtered by status
func (m *Market) BundleList(ctx context.Context, status domain.BundleStatus) (bundles []*domain.Bundle, err error) {
	err = m.read(ctx, func(ctx context.Context) error {
		bundles, err = m.Bundles.BundleRepo.List(ctx, status)
		return err
	})
	return bundles, err
}

// BuyerInterests lists the buyers of a bundle with their items, values and payment status
func (m *Market) BuyerInterests(ctx context.Context, bundleID domain.BundleID) (interests []dashboard.BuyerInterest, err error) {
	err = m.read(ctx, func(ctx context.Context) error {
		interests, err = m.Dashboard.GetBuyerInterests(ctx, bundleID)
		return err
	})
	return interests, err
}

// IsItemLocked reports whether an Active bundle references the item
func (m *Market) IsItemLocked(ctx context.Context, itemID domain.ItemID) (locked bool, err error) {
	err = m.read(ctx, func(ctx context.Context) error {
		locked, err = m.Items.IsItemInActiveBundle(ctx, itemID)
		return err
	})
	return locked, err
}

// Summary returns aggregate marketplace counts
func (m *Market) Summary(ctx context.Context) (summary *dashboard.SummaryResult, err error) {
	err = m.read(ctx, func(ctx context.Context) error {
		summary, err = m.Dashboard.GetSummary(ctx)
		return err
	})
	return summary, err
}

// Oracle returns the designated oracle address
func (m *Market) Oracle() domain.Address {
	return m.Access.Oracle()
}

// Owner returns the protocol owner
func (m *Market) Owner() domain.Address {
	return m.Access.Owner()
}

// OwnedAssets lists the assets addr holds according to the asset registry
func (m *Market) OwnedAssets(ctx context.Context, addr domain.Address) ([]domain.AssetRef, error) {
	if m.Directory == nil {
		return nil, ErrNoAssetDirectory
	}
	return m.Directory.OwnedBy(ctx, addr)
}
