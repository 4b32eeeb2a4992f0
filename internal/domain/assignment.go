package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValuePair is one oracle-supplied fairness value for a buyer
type ValuePair struct {
	Buyer Address
	Value decimal.Decimal
}

// Assignment is the fairness-value assignment the oracle submits for a bundle.
// Buyers and Values are parallel lists, mirroring how the oracle submits them.
type Assignment struct {
	BundleID BundleID
	Buyers   []Address
	Values   []decimal.Decimal
}

// Pairs zips buyers and values. It fails with ErrLengthMismatch when the lists differ in length.
func (a *Assignment) Pairs() ([]ValuePair, error) {
	if len(a.Buyers) != len(a.Values) {
		return nil, fmt.Errorf("%w: %d buyers, %d values", ErrLengthMismatch, len(a.Buyers), len(a.Values))
	}
	pairs := make([]ValuePair, len(a.Buyers))
	for i := range a.Buyers {
		pairs[i] = ValuePair{Buyer: a.Buyers[i].Normalize(), Value: a.Values[i]}
	}
	return pairs, nil
}

// ValidateAgainst ensures the assignment is acceptable for the bundle.
// Every interested buyer needs exactly one value.
// CRITICAL: Sum of values must equal the bundle price exactly (no tolerance)
func (a *Assignment) ValidateAgainst(b *Bundle) error {
	pairs, err := a.Pairs()
	if err != nil {
		return err
	}

	seen := make(map[Address]bool, len(pairs))
	total := decimal.Zero
	for _, p := range pairs {
		if !b.IsInterested(p.Buyer) {
			return fmt.Errorf("%w: %s in bundle %d", ErrBuyerNotInterested, p.Buyer, b.ID)
		}
		if seen[p.Buyer] {
			return fmt.Errorf("%w: %s", ErrDuplicateBuyer, p.Buyer)
		}
		seen[p.Buyer] = true
		if err := ValidateAmount(p.Value); err != nil {
			return fmt.Errorf("value for %s: %w", p.Buyer, err)
		}
		total = total.Add(p.Value)
	}
	for _, buyer := range b.Buyers {
		if !seen[buyer] {
			return fmt.Errorf("%w: %s has no value in bundle %d", ErrAssignmentIncomplete, buyer, b.ID)
		}
	}

	if !total.Equal(b.Price) {
		return fmt.Errorf("%w: values sum to %s, price is %s", ErrSumMismatch, total, b.Price)
	}
	return nil
}

// Map returns the assignment keyed by buyer
func (a *Assignment) Map() map[Address]decimal.Decimal {
	m := make(map[Address]decimal.Decimal, len(a.Buyers))
	for i := range a.Buyers {
		if i < len(a.Values) {
			m[a.Buyers[i].Normalize()] = a.Values[i]
		}
	}
	return m
}
