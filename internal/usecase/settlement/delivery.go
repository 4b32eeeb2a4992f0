package settlement

import (
	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

// Delivery is the planned destination of one item of a settled bundle.
// A zero To means no paying buyer asked for the item and it goes back to the seller.
type Delivery struct {
	Item *domain.Item
	To   domain.Address
}

// Unclaimed reports whether the item is returned to its seller
func (d Delivery) Unclaimed() bool {
	return d.To.IsZero()
}

// PlanDeliveries decides who receives each item of a bundle.
//
// Logic:
//   - Walk the items in bundle order
//   - Give each item to the first paying buyer (interest order) who asked for it
//   - Items nobody asked for are planned as returns to the seller
//
// items must be in bundle order; the plan has one entry per item.
func PlanDeliveries(bundle *domain.Bundle, items []*domain.Item) []Delivery {
	payers := bundle.PaidBuyers()

	plan := make([]Delivery, 0, len(items))
	for _, item := range items {
		d := Delivery{Item: item}
		for _, buyer := range payers {
			if wants(bundle.Interests[buyer], item.ID) {
				d.To = buyer
				break
			}
		}
		plan = append(plan, d)
	}
	return plan
}

func wants(interest []domain.ItemID, id domain.ItemID) bool {
	for _, itemID := range interest {
		if itemID == id {
			return true
		}
	}
	return false
}
