package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BundleStatus represents the lifecycle state of a bundle
type BundleStatus string

const (
	BundleStatusActive    BundleStatus = "ACTIVE"
	BundleStatusCompleted BundleStatus = "COMPLETED"
	BundleStatusCancelled BundleStatus = "CANCELLED"
)

// Bundle represents a seller-defined set of items sold together to several buyers.
// Composition (ItemIDs, Price, RequiredBuyers) never changes after creation.
type Bundle struct {
	ID             BundleID
	Name           string
	Description    string
	Seller         Address
	ItemIDs        []ItemID        // Unique, in creation order (payout order)
	Price          decimal.Decimal // Integer amount in the smallest unit
	RequiredBuyers int
	Status         BundleStatus
	CreatedAt      time.Time

	Buyers     []Address                   // Interested buyers, first-expressed-first
	Interests  map[Address][]ItemID        // Subset of ItemIDs per buyer
	Assignment map[Address]decimal.Decimal // Fairness values; nil until the oracle sets them
	Paid       map[Address]bool
}

// NewBundle builds an Active bundle with initialized bookkeeping maps
func NewBundle(seller Address, itemIDs []ItemID, price decimal.Decimal, requiredBuyers int) *Bundle {
	ids := make([]ItemID, len(itemIDs))
	copy(ids, itemIDs)
	return &Bundle{
		Seller:         seller,
		ItemIDs:        ids,
		Price:          price,
		RequiredBuyers: requiredBuyers,
		Status:         BundleStatusActive,
		CreatedAt:      time.Now(),
		Interests:      make(map[Address][]ItemID),
		Paid:           make(map[Address]bool),
	}
}

// Validate checks the structural invariants of a bundle.
// It does not look at the items themselves; see bundleledger for that.
func (b *Bundle) Validate() error {
	if len(b.ItemIDs) == 0 {
		return fmt.Errorf("%w: bundle must contain at least one item", ErrInvalidBundle)
	}
	if b.RequiredBuyers <= 0 {
		return fmt.Errorf("%w: required buyer count must be positive", ErrInvalidBundle)
	}
	if err := ValidatePrice(b.Price); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	// Pairwise duplicate check; bundles are small.
	for i := 0; i < len(b.ItemIDs); i++ {
		for j := i + 1; j < len(b.ItemIDs); j++ {
			if b.ItemIDs[i] == b.ItemIDs[j] {
				return fmt.Errorf("%w: duplicate item %d", ErrInvalidBundle, b.ItemIDs[i])
			}
		}
	}
	return nil
}

// CheckActive returns ErrAlreadyCompleted for completed bundles and
// ErrNotActive for any other non-active bundle.
func (b *Bundle) CheckActive() error {
	switch b.Status {
	case BundleStatusActive:
		return nil
	case BundleStatusCompleted:
		return fmt.Errorf("%w: bundle %d", ErrAlreadyCompleted, b.ID)
	default:
		return fmt.Errorf("%w: bundle %d is %s", ErrNotActive, b.ID, b.Status)
	}
}

// IsActive reports whether the bundle is still accepting interest and payments
func (b *Bundle) IsActive() bool {
	return b.Status == BundleStatusActive
}

// HasItem reports whether id is part of the bundle
func (b *Bundle) HasItem(id ItemID) bool {
	for _, itemID := range b.ItemIDs {
		if itemID == id {
			return true
		}
	}
	return false
}

// IsInterested reports whether buyer expressed interest in the bundle
func (b *Bundle) IsInterested(buyer Address) bool {
	_, ok := b.Interests[buyer]
	return ok
}

// HasQuorum reports whether enough buyers expressed interest
func (b *Bundle) HasQuorum() bool {
	return len(b.Buyers) >= b.RequiredBuyers
}

// AssignedValue returns the fairness value recorded for buyer
func (b *Bundle) AssignedValue(buyer Address) (decimal.Decimal, bool) {
	if b.Assignment == nil {
		return decimal.Zero, false
	}
	v, ok := b.Assignment[buyer]
	return v, ok
}

// CheckAssignmentComplete ensures the bundle reached quorum and every interested buyer
// has a value, so that once payments freeze the assignment everyone can still pay.
func (b *Bundle) CheckAssignmentComplete() error {
	if !b.HasQuorum() {
		return fmt.Errorf("%w: bundle %d has %d of %d buyers", ErrInsufficientInterest, b.ID, len(b.Buyers), b.RequiredBuyers)
	}
	for _, buyer := range b.Buyers {
		if _, ok := b.AssignedValue(buyer); !ok {
			return fmt.Errorf("%w: no value for %s in bundle %d", ErrAssignmentIncomplete, buyer, b.ID)
		}
	}
	return nil
}

// PaidCount returns the number of buyers who paid
func (b *Bundle) PaidCount() int {
	n := 0
	for _, paid := range b.Paid {
		if paid {
			n++
		}
	}
	return n
}

// PaidBuyers returns the buyers who paid, in interest order
func (b *Bundle) PaidBuyers() []Address {
	paid := make([]Address, 0, len(b.Paid))
	for _, buyer := range b.Buyers {
		if b.Paid[buyer] {
			paid = append(paid, buyer)
		}
	}
	return paid
}

// Clone returns a deep copy of the bundle
func (b *Bundle) Clone() *Bundle {
	c := *b
	c.ItemIDs = append([]ItemID(nil), b.ItemIDs...)
	c.Buyers = append([]Address(nil), b.Buyers...)
	c.Interests = make(map[Address][]ItemID, len(b.Interests))
	for buyer, items := range b.Interests {
		c.Interests[buyer] = append([]ItemID(nil), items...)
	}
	if b.Assignment != nil {
		c.Assignment = make(map[Address]decimal.Decimal, len(b.Assignment))
		for buyer, v := range b.Assignment {
			c.Assignment[buyer] = v
		}
	}
	c.Paid = make(map[Address]bool, len(b.Paid))
	for buyer, paid := range b.Paid {
		c.Paid[buyer] = paid
	}
	return &c
}

// ValidatePrice ensures a bundle price is a positive whole amount
func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidAmount)
	}
	if !price.IsInteger() {
		return fmt.Errorf("%w: price must be a whole amount of the smallest unit", ErrInvalidAmount)
	}
	return nil
}

// ValidateAmount ensures an amount is a non-negative whole amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidAmount)
	}
	if !amount.IsInteger() {
		return fmt.Errorf("%w: amount must be a whole amount of the smallest unit", ErrInvalidAmount)
	}
	return nil
}

// DisplayName returns the bundle name, or "Bundle #<id>" when none was given
func (b *Bundle) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("Bundle #%d", b.ID)
}

// DisplayDescription returns the bundle description, or a generated one
func (b *Bundle) DisplayDescription() string {
	if b.Description != "" {
		return b.Description
	}
	return fmt.Sprintf("A bundle of %d assets", len(b.ItemIDs))
}
