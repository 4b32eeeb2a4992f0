package dashboard

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/repository/memory"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSummary(t *testing.T) {
	ctx := context.Background()
	itemRepo := memory.NewItemRepository()
	bundleRepo := memory.NewBundleRepository()

	for i, status := range []domain.ItemStatus{domain.ItemStatusListed, domain.ItemStatusListed, domain.ItemStatusSold, domain.ItemStatusWithdrawn} {
		item := &domain.Item{Asset: domain.AssetRef{Registry: "r", AssetID: string(rune('a' + i))}, Seller: "0xdave", Status: status}
		require.NoError(t, itemRepo.Create(ctx, item))
	}
	for _, status := range []domain.BundleStatus{domain.BundleStatusActive, domain.BundleStatusActive, domain.BundleStatusCompleted, domain.BundleStatusCancelled} {
		b := domain.NewBundle("0xdave", []domain.ItemID{1}, decimal.NewFromInt(1), 1)
		b.Status = status
		require.NoError(t, bundleRepo.Create(ctx, b))
	}

	service := NewDashboardService(itemRepo, bundleRepo)
	got, err := service.GetSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, &SummaryResult{
		TotalItems:       4,
		TotalBundles:     4,
		ActiveItems:      2,
		ActiveBundles:    2,
		CompletedBundles: 1,
	}, got)
}

func TestGetBuyerInterests(t *testing.T) {
	ctx := context.Background()
	bundleRepo := memory.NewBundleRepository()
	b := domain.NewBundle("0xdave", []domain.ItemID{1, 2}, decimal.NewFromInt(10), 2)
	b.Buyers = []domain.Address{"0xbob", "0xalice"}
	b.Interests["0xbob"] = []domain.ItemID{2}
	b.Interests["0xalice"] = []domain.ItemID{1, 2}
	b.Assignment = map[domain.Address]decimal.Decimal{"0xbob": decimal.NewFromInt(3), "0xalice": decimal.NewFromInt(7)}
	b.Paid["0xalice"] = true
	require.NoError(t, bundleRepo.Create(ctx, b))

	service := NewDashboardService(memory.NewItemRepository(), bundleRepo)
	got, err := service.GetBuyerInterests(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.Address("0xbob"), got[0].Buyer)
	assert.True(t, got[0].HasValue)
	assert.True(t, got[0].AssignedValue.Equal(decimal.NewFromInt(3)))
	assert.False(t, got[0].HasPaid)
	assert.Equal(t, []domain.ItemID{1, 2}, got[1].Items)
	assert.True(t, got[1].HasPaid)

	_, err = service.GetBuyerInterests(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrBundleNotFound)
}
