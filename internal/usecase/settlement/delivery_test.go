package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDeliveries(t *testing.T) {
	bundle := domain.NewBundle("0xdave", []domain.ItemID{1, 2, 3}, decimal.NewFromInt(3), 2)
	bundle.Buyers = []domain.Address{"0xalice", "0xbob"}
	bundle.Interests["0xalice"] = []domain.ItemID{2}
	bundle.Interests["0xbob"] = []domain.ItemID{1, 2}
	bundle.Paid["0xalice"] = true
	bundle.Paid["0xbob"] = true

	plan := PlanDeliveries(bundle, items("0xdave", "0xdave", "0xdave"))
	require.Len(t, plan, 3)

	assert.Equal(t, domain.Address("0xbob"), plan[0].To)
	assert.Equal(t, domain.Address("0xalice"), plan[1].To, "contested item goes to the earliest interested buyer")
	assert.True(t, plan[2].Unclaimed())
}

func TestPlanDeliveries_SkipsUnpaidBuyers(t *testing.T) {
	bundle := domain.NewBundle("0xdave", []domain.ItemID{1}, decimal.NewFromInt(1), 1)
	bundle.Buyers = []domain.Address{"0xalice", "0xbob"}
	bundle.Interests["0xalice"] = []domain.ItemID{1}
	bundle.Interests["0xbob"] = []domain.ItemID{1}
	bundle.Paid["0xbob"] = true

	plan := PlanDeliveries(bundle, items("0xdave"))
	assert.Equal(t, domain.Address("0xbob"), plan[0].To)
}
