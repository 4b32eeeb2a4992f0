package settlement

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

// Payout is the share of the proceeds owed to the seller of one item
type Payout struct {
	ItemID domain.ItemID
	Seller domain.Address
	Amount decimal.Decimal
}

// SplitProceeds splits total evenly across items, in bundle order
// Logic:
//  1. Every item gets total / len(items), rounded down to a whole unit
//  2. The division remainder goes to the first item
//
// Safety: Ensures the payouts sum to total exactly (no unit lost)
func SplitProceeds(total decimal.Decimal, items []*domain.Item) ([]Payout, error) {
	if total.IsNegative() || !total.IsInteger() {
		return nil, errors.New("proceeds must be a non-negative whole amount")
	}
	if len(items) == 0 {
		return nil, errors.New("items list cannot be empty")
	}

	share, remainder := total.QuoRem(decimal.NewFromInt(int64(len(items))), 0)

	payouts := make([]Payout, len(items))
	for i, item := range items {
		payouts[i] = Payout{ItemID: item.ID, Seller: item.Seller, Amount: share}
	}
	payouts[0].Amount = payouts[0].Amount.Add(remainder)

	// Safety check: Ensure payouts equal the proceeds exactly
	paid := decimal.Zero
	for _, p := range payouts {
		paid = paid.Add(p.Amount)
	}
	if !paid.Equal(total) {
		return nil, errors.New("total payout does not equal proceeds")
	}

	return payouts, nil
}
