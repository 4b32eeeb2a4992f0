package market

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/registry"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/repository/memory"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/treasury"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/events"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/bundleledger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/itemledger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner   = domain.Address("0xowner")
	oracle  = domain.Address("0xoracle")
	custody = domain.Address("0xmarket")
	dave    = domain.Address("0xdave")
	alice   = domain.Address("0xalice")
	bob     = domain.Address("0xbob")
	charlie = domain.Address("0xcharlie")
)

type fixture struct {
	market   *Market
	registry *registry.MemoryRegistry
	treasury *treasury.MemoryTreasury
	recorder *events.Recorder
}

func newFixture() *fixture {
	reg := registry.NewMemoryRegistry()
	tr := treasury.NewMemoryTreasury()
	recorder := new(events.Recorder)
	m := New(Deps{
		ItemRepo:   memory.NewItemRepository(),
		BundleRepo: memory.NewBundleRepository(),
		Registry:   reg,
		Treasury:   tr,
		Events:     recorder,
		Custody:    custody,
		Owner:      owner,
		Oracle:     oracle,
	})
	return &fixture{market: m, registry: reg, treasury: tr, recorder: recorder}
}

func nft(n int) domain.AssetRef {
	return domain.AssetRef{Registry: "0xNFT", AssetID: fmt.Sprint(n)}
}

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// listAll mints n assets to dave and lists them
func (f *fixture) listAll(t *testing.T, n int) []domain.ItemID {
	ids := make([]domain.ItemID, n)
	for i := 0; i < n; i++ {
		f.registry.Mint(nft(i+1), dave)
		item, err := f.market.ListItem(context.Background(), itemledger.ListItemInput{Asset: nft(i + 1), Seller: dave})
		require.NoError(t, err)
		ids[i] = item.ID
	}
	return ids
}

func TestMarket_ThreeItemsThreeBuyers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ids := f.listAll(t, 3)

	bundle, err := f.market.CreateBundle(ctx, bundleledger.CreateBundleInput{Seller: dave, ItemIDs: ids, Price: dec(3), RequiredBuyers: 3})
	require.NoError(t, err)

	buyers := []domain.Address{alice, bob, charlie}
	for i, buyer := range buyers {
		f.treasury.Deposit(buyer, dec(10))
		_, err := f.market.ExpressInterest(ctx, bundle.ID, buyer, []domain.ItemID{ids[i]})
		require.NoError(t, err)
	}
	require.Len(t, f.recorder.OfType(domain.EventBundleReady), 1)
	require.NoError(t, f.market.RequestAssignment(ctx, bundle.ID, alice))

	_, err = f.market.SetAssignment(ctx, domain.Assignment{BundleID: bundle.ID, Buyers: buyers, Values: []decimal.Decimal{dec(1), dec(1), dec(1)}}, oracle)
	require.NoError(t, err)

	for i, buyer := range buyers {
		outcome, err := f.market.Pay(ctx, settlement.PayInput{BundleID: bundle.ID, Buyer: buyer, Amount: dec(1)})
		require.NoError(t, err)
		assert.Equal(t, i == len(buyers)-1, outcome.Settled)
	}

	got, err := f.market.Bundle(ctx, bundle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BundleStatusCompleted, got.Status)
	for i, buyer := range buyers {
		holder, err := f.registry.OwnerOf(ctx, nft(i+1))
		require.NoError(t, err)
		assert.Equal(t, buyer, holder)
		assert.True(t, f.treasury.Balance(buyer).Equal(dec(9)))
	}
	assert.True(t, f.treasury.Balance(dave).Equal(dec(3)))

	summary, err := f.market.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ActiveItems)
	assert.Equal(t, 1, summary.CompletedBundles)

	owned, err := f.market.OwnedAssets(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []domain.AssetRef{nft(2)}, owned)
}

func TestMarket_OverpaymentRefunded(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ids := f.listAll(t, 1)
	f.treasury.Deposit(alice, dec(5))

	bundle, err := f.market.CreateBundle(ctx, bundleledger.CreateBundleInput{Seller: dave, ItemIDs: ids, Price: dec(1), RequiredBuyers: 1})
	require.NoError(t, err)
	_, err = f.market.ExpressInterest(ctx, bundle.ID, alice, ids)
	require.NoError(t, err)
	_, err = f.market.SetAssignment(ctx, domain.Assignment{BundleID: bundle.ID, Buyers: []domain.Address{alice}, Values: []decimal.Decimal{dec(1)}}, oracle)
	require.NoError(t, err)

	_, err = f.market.Pay(ctx, settlement.PayInput{BundleID: bundle.ID, Buyer: alice, Amount: dec(2)})
	require.NoError(t, err)

	assert.True(t, f.treasury.Balance(alice).Equal(dec(4)), "net spend is the assigned value")
}

func TestMarket_LockedItemAndCancellation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ids := f.listAll(t, 2)

	bundle, err := f.market.CreateBundle(ctx, bundleledger.CreateBundleInput{Seller: dave, ItemIDs: ids, Price: dec(10), RequiredBuyers: 1})
	require.NoError(t, err)

	locked, err := f.market.IsItemLocked(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, locked)
	_, err = f.market.WithdrawItem(ctx, ids[0], dave)
	assert.ErrorIs(t, err, domain.ErrItemLocked)

	_, err = f.market.CancelBundle(ctx, bundle.ID, dave)
	require.NoError(t, err)

	item, err := f.market.WithdrawItem(ctx, ids[0], dave)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusWithdrawn, item.Status)
	holder, err := f.registry.OwnerOf(ctx, nft(1))
	require.NoError(t, err)
	assert.Equal(t, dave, holder)
}

func TestMarket_CancelRefundsPaidBuyers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ids := f.listAll(t, 2)
	f.treasury.Deposit(alice, dec(10))
	f.treasury.Deposit(bob, dec(10))

	bundle, err := f.market.CreateBundle(ctx, bundleledger.CreateBundleInput{Seller: dave, ItemIDs: ids, Price: dec(4), RequiredBuyers: 2})
	require.NoError(t, err)
	_, err = f.market.ExpressInterest(ctx, bundle.ID, alice, ids[:1])
	require.NoError(t, err)
	_, err = f.market.ExpressInterest(ctx, bundle.ID, bob, ids[1:])
	require.NoError(t, err)
	_, err = f.market.SetAssignment(ctx, domain.Assignment{BundleID: bundle.ID, Buyers: []domain.Address{alice, bob}, Values: []decimal.Decimal{dec(2), dec(2)}}, oracle)
	require.NoError(t, err)

	_, err = f.market.Pay(ctx, settlement.PayInput{BundleID: bundle.ID, Buyer: alice, Amount: dec(2)})
	require.NoError(t, err)
	require.True(t, f.treasury.Escrow().Equal(dec(2)))

	cancelled, err := f.market.CancelBundle(ctx, bundle.ID, dave)
	require.NoError(t, err)
	assert.Equal(t, domain.BundleStatusCancelled, cancelled.Status)

	assert.True(t, f.treasury.Balance(alice).Equal(dec(10)), "paid buyer gets the assigned value back")
	assert.True(t, f.treasury.Escrow().IsZero())
	refunds := f.recorder.OfType(domain.EventRefundIssued)
	require.Len(t, refunds, 1)
	assert.Equal(t, alice, refunds[0].Counterparty)
	assert.True(t, refunds[0].Amount.Equal(dec(2)))
}

func TestMarket_OverlappingBundleSellsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ids := f.listAll(t, 1)
	for _, buyer := range []domain.Address{alice, bob, charlie} {
		f.treasury.Deposit(buyer, dec(10))
	}

	first, err := f.market.CreateBundle(ctx, bundleledger.CreateBundleInput{Seller: dave, ItemIDs: ids, Price: dec(5), RequiredBuyers: 1})
	require.NoError(t, err)
	second, err := f.market.CreateBundle(ctx, bundleledger.CreateBundleInput{Seller: dave, ItemIDs: ids, Price: dec(5), RequiredBuyers: 1})
	require.NoError(t, err)

	_, err = f.market.ExpressInterest(ctx, first.ID, alice, ids)
	require.NoError(t, err)
	_, err = f.market.ExpressInterest(ctx, second.ID, bob, ids)
	require.NoError(t, err)
	for bundleID, buyer := range map[domain.BundleID]domain.Address{first.ID: alice, second.ID: bob} {
		_, err = f.market.SetAssignment(ctx, domain.Assignment{BundleID: bundleID, Buyers: []domain.Address{buyer}, Values: []decimal.Decimal{dec(5)}}, oracle)
		require.NoError(t, err)
	}

	outcome, err := f.market.Pay(ctx, settlement.PayInput{BundleID: first.ID, Buyer: alice, Amount: dec(5)})
	require.NoError(t, err)
	require.True(t, outcome.Settled)

	_, err = f.market.Pay(ctx, settlement.PayInput{BundleID: second.ID, Buyer: bob, Amount: dec(5)})
	assert.ErrorIs(t, err, domain.ErrAlreadySold)
	_, err = f.market.ExpressInterest(ctx, second.ID, charlie, ids)
	assert.ErrorIs(t, err, domain.ErrAlreadySold)

	holder, err := f.registry.OwnerOf(ctx, nft(1))
	require.NoError(t, err)
	assert.Equal(t, alice, holder)
	assert.True(t, f.treasury.Balance(bob).Equal(dec(10)), "nothing is taken from the second bundle's buyer")
	assert.True(t, f.treasury.Balance(dave).Equal(dec(5)), "the seller is paid once")
	assert.True(t, f.treasury.Escrow().IsZero())

	_, err = f.market.CancelBundle(ctx, second.ID, dave)
	assert.NoError(t, err)
}

func TestMarket_OnlyOracleSetsValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ids := f.listAll(t, 1)
	bundle, err := f.market.CreateBundle(ctx, bundleledger.CreateBundleInput{Seller: dave, ItemIDs: ids, Price: dec(1), RequiredBuyers: 1})
	require.NoError(t, err)
	_, err = f.market.ExpressInterest(ctx, bundle.ID, alice, ids)
	require.NoError(t, err)

	assignment := domain.Assignment{BundleID: bundle.ID, Buyers: []domain.Address{alice}, Values: []decimal.Decimal{dec(1)}}
	_, err = f.market.SetAssignment(ctx, assignment, owner)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	got, err := f.market.Bundle(ctx, bundle.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Assignment)

	// After rotation the old oracle loses its authority.
	require.NoError(t, f.market.SetOracle(ctx, "0xneworacle", owner))
	_, err = f.market.SetAssignment(ctx, assignment, oracle)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.market.SetAssignment(ctx, assignment, "0xneworacle")
	assert.NoError(t, err)
}

func TestMarket_ReentrantCallIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ids := f.listAll(t, 1)
	f.treasury.Deposit(alice, dec(5))

	bundle, err := f.market.CreateBundle(ctx, bundleledger.CreateBundleInput{Seller: dave, ItemIDs: ids, Price: dec(1), RequiredBuyers: 1})
	require.NoError(t, err)
	_, err = f.market.ExpressInterest(ctx, bundle.ID, alice, ids)
	require.NoError(t, err)
	_, err = f.market.SetAssignment(ctx, domain.Assignment{BundleID: bundle.ID, Buyers: []domain.Address{alice}, Values: []decimal.Decimal{dec(1)}}, oracle)
	require.NoError(t, err)

	// The registry calls back into the market while delivering the asset.
	var reentryErr error
	var observed *domain.Bundle
	f.registry.OnTransfer(func(ctx context.Context, asset domain.AssetRef, from, to domain.Address) {
		_, reentryErr = f.market.CancelBundle(ctx, bundle.ID, dave)
		observed, _ = f.market.Bundle(ctx, bundle.ID)
	})

	outcome, err := f.market.Pay(ctx, settlement.PayInput{BundleID: bundle.ID, Buyer: alice, Amount: dec(1)})
	require.NoError(t, err)
	assert.True(t, outcome.Settled)

	assert.ErrorIs(t, reentryErr, domain.ErrReentrantCall)
	require.NotNil(t, observed, "reads from inside the call do not deadlock")
	assert.Equal(t, domain.BundleStatusActive, observed.Status, "bundle completes after deliveries")

	got, err := f.market.Bundle(ctx, bundle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BundleStatusCompleted, got.Status)
}

func TestMarket_ConcurrentInterestIsSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ids := f.listAll(t, 1)
	const required = 5
	bundle, err := f.market.CreateBundle(ctx, bundleledger.CreateBundleInput{Seller: dave, ItemIDs: ids, Price: dec(50), RequiredBuyers: required})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := domain.Address(fmt.Sprintf("0xbuyer%02d", i))
			_, errs[i] = f.market.ExpressInterest(ctx, bundle.ID, buyer, ids)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, domain.ErrQuorumReached)
		}
	}
	assert.Equal(t, required, accepted)

	got, err := f.market.Bundle(ctx, bundle.ID)
	require.NoError(t, err)
	assert.Len(t, got.Buyers, required)
	assert.Len(t, f.recorder.OfType(domain.EventBundleReady), 1)
}
