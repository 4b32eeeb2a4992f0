package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
)

// TransferKind names the secondary transfer a TransferResult describes
type TransferKind string

const (
	TransferRefund   TransferKind = "REFUND"
	TransferPayout   TransferKind = "PAYOUT"
	TransferDelivery TransferKind = "DELIVERY"
	TransferReturn   TransferKind = "RETURN"
)

// TransferResult is the observed outcome of one fail-soft transfer
type TransferResult struct {
	Kind   TransferKind
	ItemID domain.ItemID // Zero for excess and cancellation refunds
	To     domain.Address
	Amount decimal.Decimal // Zero for asset transfers
	OK     bool
	Err    error
}

// Outcome describes everything a successful payment caused
type Outcome struct {
	Bundle         *domain.Bundle
	AssignedValue  decimal.Decimal
	Refund         *TransferResult // Nil when there was no excess
	Settled        bool
	TotalCollected decimal.Decimal
	Payouts        []TransferResult
	ShareRefunds   []TransferResult // Shares of undeliverable items returned to buyers
	Deliveries     []TransferResult
}

// Failures returns every fail-soft transfer that did not go through
func (o *Outcome) Failures() []TransferResult {
	var failed []TransferResult
	if o.Refund != nil && !o.Refund.OK {
		failed = append(failed, *o.Refund)
	}
	for _, group := range [][]TransferResult{o.Payouts, o.ShareRefunds, o.Deliveries} {
		for _, r := range group {
			if !r.OK {
				failed = append(failed, r)
			}
		}
	}
	return failed
}

// PayInput represents a buyer's payment towards a bundle
type PayInput struct {
	BundleID domain.BundleID
	Buyer    domain.Address
	Amount   decimal.Decimal
}

// SettlementService collects payments and settles bundles once every required buyer has paid
type SettlementService struct {
	ItemRepo   domain.ItemRepository
	BundleRepo domain.BundleRepository
	Registry   domain.AssetRegistry
	Treasury   domain.Treasury
	Custody    domain.Address
	Events     domain.EventSink
	Logger     *logger.Logger
}

// NewSettlementService creates a new SettlementService instance
func NewSettlementService(
	itemRepo domain.ItemRepository,
	bundleRepo domain.BundleRepository,
	registry domain.AssetRegistry,
	treasury domain.Treasury,
	custody domain.Address,
	events domain.EventSink,
	log *logger.Logger,
) *SettlementService {
	return &SettlementService{
		ItemRepo:   itemRepo,
		BundleRepo: bundleRepo,
		Registry:   registry,
		Treasury:   treasury,
		Custody:    custody.Normalize(),
		Events:     events,
		Logger:     log,
	}
}

// Pay accepts a buyer's payment for their assigned value
// Logic:
//  1. Validate: active bundle, interested buyer, not yet paid, value assigned, amount covers it
//  2. The assignment must cover every buyer at quorum and every item must still be Listed
//  3. Collect the full amount from the buyer; a failed collection changes nothing
//  4. Mark the buyer paid and emit BuyerPaid
//  5. Refund any excess (fail-soft)
//  6. When the paid count reaches the required count, settle the bundle
//
// If settlement itself fails after the payment was recorded, the partial outcome is
// returned together with the error.
func (s *SettlementService) Pay(ctx context.Context, input PayInput) (*Outcome, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	bundle, err := s.BundleRepo.GetByID(ctx, input.BundleID)
	if err != nil {
		return nil, err
	}
	if err := bundle.CheckActive(); err != nil {
		return nil, err
	}

	buyer := input.Buyer.Normalize()
	if !bundle.IsInterested(buyer) {
		return nil, fmt.Errorf("%w: %s in bundle %d", domain.ErrNotInterested, buyer, bundle.ID)
	}
	if bundle.Paid[buyer] {
		return nil, fmt.Errorf("%w: %s in bundle %d", domain.ErrAlreadyPaid, buyer, bundle.ID)
	}
	value, ok := bundle.AssignedValue(buyer)
	if !ok {
		return nil, fmt.Errorf("%w: %s in bundle %d", domain.ErrValueNotSet, buyer, bundle.ID)
	}
	if input.Amount.LessThan(value) {
		return nil, fmt.Errorf("%w: sent %s, assigned %s", domain.ErrInsufficientPayment, input.Amount, value)
	}
	if err := bundle.CheckAssignmentComplete(); err != nil {
		return nil, err
	}
	if err := domain.CheckItemsListed(ctx, s.ItemRepo, bundle.ItemIDs); err != nil {
		return nil, fmt.Errorf("bundle %d: %w", bundle.ID, err)
	}

	if err := s.Treasury.Collect(ctx, buyer, input.Amount); err != nil {
		s.Logger.Warn("payment collection failed", "bundle_id", bundle.ID, "buyer", buyer, "err", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
	}

	bundle.Paid[buyer] = true
	if err := s.BundleRepo.Update(ctx, bundle); err != nil {
		// The payment was never recorded; hand the funds back.
		if derr := s.Treasury.Disburse(ctx, buyer, input.Amount); derr != nil {
			s.Logger.Error("could not return payment after failed update", "bundle_id", bundle.ID, "buyer", buyer, "err", derr)
		}
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	ev := domain.NewEvent(domain.EventBuyerPaid)
	ev.BundleID = bundle.ID
	ev.Actor = buyer
	ev.Amount = value
	s.Events.Emit(ctx, ev)
	s.Logger.Info("buyer paid", "bundle_id", bundle.ID, "buyer", buyer, "value", value.String(), "paid", bundle.PaidCount())

	outcome := &Outcome{Bundle: bundle, AssignedValue: value}

	if excess := input.Amount.Sub(value); excess.IsPositive() {
		outcome.Refund = s.refund(ctx, bundle.ID, 0, buyer, excess)
	}

	if bundle.PaidCount() == bundle.RequiredBuyers {
		if err := s.settle(ctx, bundle, outcome); err != nil {
			s.Logger.Error("partial settlement", "bundle_id", bundle.ID, "buyer", buyer,
				"payouts", len(outcome.Payouts), "deliveries", len(outcome.Deliveries), "err", err)
			return outcome, err
		}
	}

	return outcome, nil
}

// RefundPaid returns the assigned value of every buyer who paid into a bundle that will
// never settle. Failures are recorded as RefundFailed and do not stop the other refunds.
func (s *SettlementService) RefundPaid(ctx context.Context, bundle *domain.Bundle) []TransferResult {
	var results []TransferResult
	for _, buyer := range bundle.PaidBuyers() {
		value, _ := bundle.AssignedValue(buyer)
		results = append(results, *s.refund(ctx, bundle.ID, 0, buyer, value))
	}
	if len(results) > 0 {
		s.Logger.Info("paid buyers refunded", "bundle_id", bundle.ID, "buyers", len(results))
	}
	return results
}

func (s *SettlementService) refund(ctx context.Context, bundleID domain.BundleID, itemID domain.ItemID, buyer domain.Address, excess decimal.Decimal) *TransferResult {
	result := &TransferResult{Kind: TransferRefund, ItemID: itemID, To: buyer, Amount: excess}
	if !excess.IsPositive() {
		result.OK = true
		return result
	}
	err := s.Treasury.Disburse(ctx, buyer, excess)

	var ev domain.Event
	if err != nil {
		result.Err = err
		ev = domain.NewEvent(domain.EventRefundFailed)
		ev.Reason = err.Error()
		s.Logger.Warn("refund failed", "bundle_id", bundleID, "buyer", buyer, "amount", excess.String(), "err", err)
	} else {
		result.OK = true
		ev = domain.NewEvent(domain.EventRefundIssued)
	}
	ev.BundleID = bundleID
	ev.ItemID = itemID
	ev.Counterparty = buyer
	ev.Amount = excess
	s.Events.Emit(ctx, ev)
	return result
}

// settle pays the sellers, delivers the items and completes the bundle.
// The share of an item that is no longer Listed goes back to the buyer it was meant for
// instead of its seller. Transfer failures are recorded in the outcome and never abort settlement.
func (s *SettlementService) settle(ctx context.Context, bundle *domain.Bundle, outcome *Outcome) error {
	payers := bundle.PaidBuyers()
	total := decimal.Zero
	for _, buyer := range payers {
		v, _ := bundle.AssignedValue(buyer)
		total = total.Add(v)
	}
	outcome.TotalCollected = total

	items := make([]*domain.Item, 0, len(bundle.ItemIDs))
	for _, id := range bundle.ItemIDs {
		item, err := s.ItemRepo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load item %d for settlement: %w", id, err)
		}
		items = append(items, item)
	}

	payouts, err := SplitProceeds(total, items)
	if err != nil {
		return fmt.Errorf("failed to split proceeds of bundle %d: %w", bundle.ID, err)
	}
	plan := PlanDeliveries(bundle, items)
	for i, p := range payouts {
		if items[i].IsListed() {
			outcome.Payouts = append(outcome.Payouts, s.payout(ctx, bundle.ID, p))
			continue
		}
		to := plan[i].To
		if to.IsZero() {
			to = payers[0]
		}
		outcome.ShareRefunds = append(outcome.ShareRefunds, *s.refund(ctx, bundle.ID, p.ItemID, to, p.Amount))
	}

	for _, d := range plan {
		outcome.Deliveries = append(outcome.Deliveries, s.deliver(ctx, bundle.ID, d))
	}

	bundle.Status = domain.BundleStatusCompleted
	if err := s.BundleRepo.Update(ctx, bundle); err != nil {
		return fmt.Errorf("failed to complete bundle: %w", err)
	}
	outcome.Settled = true

	ev := domain.NewEvent(domain.EventBundlePurchased)
	ev.BundleID = bundle.ID
	ev.Buyers = payers
	ev.Amount = total
	s.Events.Emit(ctx, ev)

	s.Logger.Info("bundle purchased",
		"bundle_id", bundle.ID,
		"total", total.String(),
		"buyers", len(payers),
		"failed_transfers", len(outcome.Failures()),
	)
	return nil
}

func (s *SettlementService) payout(ctx context.Context, bundleID domain.BundleID, p Payout) TransferResult {
	result := TransferResult{Kind: TransferPayout, ItemID: p.ItemID, To: p.Seller, Amount: p.Amount}
	if !p.Amount.IsPositive() {
		result.OK = true
		return result
	}

	var ev domain.Event
	if err := s.Treasury.Disburse(ctx, p.Seller, p.Amount); err != nil {
		result.Err = err
		ev = domain.NewEvent(domain.EventPayoutFailed)
		ev.Reason = err.Error()
		s.Logger.Warn("payout failed", "bundle_id", bundleID, "item_id", p.ItemID, "seller", p.Seller, "amount", p.Amount.String(), "err", err)
	} else {
		result.OK = true
		ev = domain.NewEvent(domain.EventPayoutIssued)
	}
	ev.BundleID = bundleID
	ev.ItemID = p.ItemID
	ev.Counterparty = p.Seller
	ev.Amount = p.Amount
	s.Events.Emit(ctx, ev)
	return result
}

// deliver moves one item out of custody. The item leaves the market whether or not
// the registry transfer succeeds; a failure is surfaced as DeliveryFailed.
func (s *SettlementService) deliver(ctx context.Context, bundleID domain.BundleID, d Delivery) TransferResult {
	item := d.Item
	result := TransferResult{Kind: TransferDelivery, ItemID: item.ID, To: d.To}
	status := domain.ItemStatusSold
	okType := domain.EventAssetDelivered
	if d.Unclaimed() {
		result.Kind = TransferReturn
		result.To = item.Seller
		status = domain.ItemStatusWithdrawn
		okType = domain.EventItemReturned
	}

	fail := func(err error) TransferResult {
		result.Err = err
		ev := domain.NewEvent(domain.EventDeliveryFailed)
		ev.BundleID = bundleID
		ev.ItemID = item.ID
		ev.Counterparty = result.To
		ev.Reason = err.Error()
		s.Events.Emit(ctx, ev)
		s.Logger.Warn("delivery failed", "bundle_id", bundleID, "item_id", item.ID, "to", result.To, "err", err)
		return result
	}

	// Overlapping bundles may have sold or returned the item already.
	if !item.IsListed() {
		return fail(fmt.Errorf("%w: item %d is %s", domain.ErrAlreadySold, item.ID, item.Status))
	}

	transferErr := s.Registry.Transfer(ctx, item.Asset, s.Custody, result.To)

	item.Status = status
	if err := s.ItemRepo.Update(ctx, item); err != nil {
		s.Logger.Error("failed to update delivered item", "bundle_id", bundleID, "item_id", item.ID, "err", err)
	}

	if transferErr != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrTransferFailed, transferErr))
	}

	result.OK = true
	ev := domain.NewEvent(okType)
	ev.BundleID = bundleID
	ev.ItemID = item.ID
	ev.Counterparty = result.To
	s.Events.Emit(ctx, ev)
	return result
}
