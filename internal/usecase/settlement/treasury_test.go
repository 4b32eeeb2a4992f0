package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/registry"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/repository/memory"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/events"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTreasury is a mock implementation of Treasury for testing
type MockTreasury struct {
	mock.Mock
}

func (m *MockTreasury) Collect(ctx context.Context, from domain.Address, amount decimal.Decimal) error {
	args := m.Called(ctx, from, amount)
	return args.Error(0)
}

func (m *MockTreasury) Disburse(ctx context.Context, to domain.Address, amount decimal.Decimal) error {
	args := m.Called(ctx, to, amount)
	return args.Error(0)
}

// brokenUpdates fails every bundle update
type brokenUpdates struct {
	domain.BundleRepository
}

func (brokenUpdates) Update(ctx context.Context, bundle *domain.Bundle) error {
	return errors.New("connection reset")
}

// pricedBundle lists one item and bundles it for alice and bob at 15 and 25
func pricedBundle(t *testing.T, items domain.ItemRepository, repo domain.BundleRepository) *domain.Bundle {
	item := &domain.Item{Asset: asset(1), Seller: seller, Status: domain.ItemStatusListed}
	require.NoError(t, items.Create(context.Background(), item))

	b := domain.NewBundle(seller, []domain.ItemID{item.ID}, decimal.NewFromInt(40), 2)
	b.Buyers = []domain.Address{"0xalice", "0xbob"}
	b.Interests["0xalice"] = []domain.ItemID{item.ID}
	b.Interests["0xbob"] = []domain.ItemID{item.ID}
	b.Assignment = map[domain.Address]decimal.Decimal{
		"0xalice": decimal.NewFromInt(15),
		"0xbob":   decimal.NewFromInt(25),
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func TestPay_CollectFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	items, bundles := memory.NewItemRepository(), memory.NewBundleRepository()
	b := pricedBundle(t, items, bundles)

	tr := new(MockTreasury)
	tr.On("Collect", ctx, domain.Address("0xalice"), decimal.NewFromInt(20)).Return(errors.New("insufficient funds")).Once()

	recorder := new(events.Recorder)
	service := NewSettlementService(items, bundles, registry.NewMemoryRegistry(), tr, custody, recorder, logger.Nop())

	_, err := service.Pay(ctx, PayInput{BundleID: b.ID, Buyer: "0xAlice", Amount: decimal.NewFromInt(20)})
	assert.ErrorIs(t, err, domain.ErrPaymentFailed)

	tr.AssertExpectations(t)
	tr.AssertNotCalled(t, "Disburse", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, recorder.Events())

	stored, err := bundles.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.PaidCount())
}

func TestPay_UnrecordedPaymentIsReturned(t *testing.T) {
	ctx := context.Background()
	items, bundles := memory.NewItemRepository(), memory.NewBundleRepository()
	b := pricedBundle(t, items, bundles)

	tr := new(MockTreasury)
	tr.On("Collect", ctx, domain.Address("0xbob"), decimal.NewFromInt(30)).Return(nil).Once()
	tr.On("Disburse", ctx, domain.Address("0xbob"), decimal.NewFromInt(30)).Return(nil).Once()

	recorder := new(events.Recorder)
	service := NewSettlementService(items, brokenUpdates{bundles}, registry.NewMemoryRegistry(), tr, custody, recorder, logger.Nop())

	_, err := service.Pay(ctx, PayInput{BundleID: b.ID, Buyer: "0xbob", Amount: decimal.NewFromInt(30)})
	assert.ErrorContains(t, err, "failed to record payment")

	tr.AssertExpectations(t)
	assert.Empty(t, recorder.OfType(domain.EventBuyerPaid))
}
