package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bvkgo/kv/kvmemdb"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/bundlemarket-backend/internal/adapter/journal"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/registry"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/repository/memory"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/treasury"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/events"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/bundleledger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/itemledger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/market"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newMarket lists two items and bundles them; alice shows interest in the first
func newMarket(t *testing.T) (*market.Market, domain.BundleID) {
	t.Helper()
	ctx := context.Background()

	reg := registry.NewMemoryRegistry()
	m := market.New(market.Deps{
		ItemRepo:   memory.NewItemRepository(),
		BundleRepo: memory.NewBundleRepository(),
		Registry:   reg,
		Treasury:   treasury.NewMemoryTreasury(),
		Events:     new(events.Recorder),
		Custody:    "0xmarket",
		Owner:      "0xowner",
		Oracle:     "0xoracle",
	})

	var ids []domain.ItemID
	for i := 1; i <= 2; i++ {
		asset := domain.AssetRef{Registry: "0xnft", AssetID: fmt.Sprint(i)}
		reg.Mint(asset, "0xdave")
		item, err := m.ListItem(ctx, itemledger.ListItemInput{Asset: asset, Seller: "0xdave"})
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}
	bundle, err := m.CreateBundle(ctx, bundleledger.CreateBundleInput{
		Seller: "0xdave", ItemIDs: ids, Price: decimal.NewFromInt(150), RequiredBuyers: 2, Name: "Pair",
	})
	require.NoError(t, err)
	_, err = m.ExpressInterest(ctx, bundle.ID, "0xalice", ids[:1])
	require.NoError(t, err)
	return m, bundle.ID
}

func serve(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Reads(t *testing.T) {
	m, bundleID := newMarket(t)
	router := NewRouter(RouterConfig{Handler: NewHandler(m, nil)})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, body []byte)
	}{
		{
			name:       "healthcheck",
			path:       "/healthcheck",
			wantStatus: http.StatusOK,
		},
		{
			name:       "list listed items",
			path:       "/api/items?status=listed",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp struct{ Items []ItemDTO }
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Len(t, resp.Items, 2)
			},
		},
		{
			name:       "item is locked by the bundle",
			path:       "/api/items/1",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var item ItemDTO
				require.NoError(t, json.Unmarshal(body, &item))
				require.NotNil(t, item.Locked)
				assert.True(t, *item.Locked)
				assert.Equal(t, "0xdave", item.Seller)
			},
		},
		{
			name:       "bundle",
			path:       fmt.Sprintf("/api/bundles/%d", bundleID),
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var b BundleDTO
				require.NoError(t, json.Unmarshal(body, &b))
				assert.Equal(t, "Pair", b.Name)
				assert.Equal(t, "150", b.Price)
				assert.Equal(t, []uint64{1, 2}, b.ItemIDs)
				require.Len(t, b.Buyers, 1)
				assert.Nil(t, b.Buyers[0].AssignedValue)
			},
		},
		{
			name:       "buyer interests",
			path:       fmt.Sprintf("/api/bundles/%d/buyers", bundleID),
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp struct{ Buyers []BuyerDTO }
				require.NoError(t, json.Unmarshal(body, &resp))
				require.Len(t, resp.Buyers, 1)
				assert.Equal(t, "0xalice", resp.Buyers[0].Buyer)
				assert.Equal(t, []uint64{1}, resp.Buyers[0].Items)
			},
		},
		{
			name:       "summary",
			path:       "/api/summary",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var s SummaryDTO
				require.NoError(t, json.Unmarshal(body, &s))
				assert.Equal(t, SummaryDTO{TotalItems: 2, TotalBundles: 1, ActiveItems: 2, ActiveBundles: 1}, s)
			},
		},
		{
			name:       "oracle",
			path:       "/api/oracle",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				assert.JSONEq(t, `{"oracle":"0xoracle","owner":"0xowner"}`, string(body))
			},
		},
		{
			name:       "custody holds escrowed assets",
			path:       "/api/assets/0xMarket",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp struct{ Assets []AssetDTO }
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Len(t, resp.Assets, 2)
			},
		},
		{name: "unknown bundle", path: "/api/bundles/99", wantStatus: http.StatusNotFound},
		{name: "unknown item", path: "/api/items/99", wantStatus: http.StatusNotFound},
		{name: "bad id", path: "/api/bundles/abc", wantStatus: http.StatusBadRequest},
		{name: "bad status", path: "/api/bundles?status=open", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, tt.path, "")
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, w.Body.Bytes())
			}
		})
	}
}

func TestRouter_Events(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(ctx, kvmemdb.New(), nil)
	require.NoError(t, err)

	reg := registry.NewMemoryRegistry()
	m := market.New(market.Deps{
		ItemRepo:   memory.NewItemRepository(),
		BundleRepo: memory.NewBundleRepository(),
		Registry:   reg,
		Treasury:   treasury.NewMemoryTreasury(),
		Events:     j,
		Custody:    "0xmarket",
		Owner:      "0xowner",
	})
	asset := domain.AssetRef{Registry: "0xnft", AssetID: "1"}
	reg.Mint(asset, "0xdave")
	item, err := m.ListItem(ctx, itemledger.ListItemInput{Asset: asset, Seller: "0xdave"})
	require.NoError(t, err)
	_, err = m.CreateBundle(ctx, bundleledger.CreateBundleInput{
		Seller: "0xdave", ItemIDs: []domain.ItemID{item.ID}, Price: decimal.NewFromInt(7), RequiredBuyers: 1,
	})
	require.NoError(t, err)

	handler := NewHandler(m, nil)
	handler.Events = j
	router := NewRouter(RouterConfig{Handler: handler})

	type page struct {
		Events []EventDTO
		Next   uint64
	}

	w := serve(router, "/api/events", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var all page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all.Events, 2)
	assert.Equal(t, string(domain.EventItemListed), all.Events[0].Type)
	assert.Equal(t, "0xdave", all.Events[0].Actor)
	assert.Equal(t, string(domain.EventBundleCreated), all.Events[1].Type)
	assert.Equal(t, "7", all.Events[1].Amount)
	assert.Equal(t, uint64(2), all.Next)

	w = serve(router, "/api/events?after=1&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var tail page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tail))
	require.Len(t, tail.Events, 1)
	assert.Equal(t, uint64(2), tail.Events[0].Seq)

	assert.Equal(t, http.StatusBadRequest, serve(router, "/api/events?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, "/api/events?after=-1", "").Code)

	withoutLog := NewRouter(RouterConfig{Handler: NewHandler(m, nil)})
	assert.Equal(t, http.StatusNotFound, serve(withoutLog, "/api/events", "").Code)
}

func TestRouter_Token(t *testing.T) {
	m, _ := newMarket(t)
	router := NewRouter(RouterConfig{Handler: NewHandler(m, nil), APIToken: "secret"})

	assert.Equal(t, http.StatusOK, serve(router, "/healthcheck", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/api/summary", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/api/summary", "wrong").Code)
	assert.Equal(t, http.StatusOK, serve(router, "/api/summary", "secret").Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: 3", domain.ErrBundleNotFound), http.StatusNotFound},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrItemLocked, http.StatusConflict},
		{domain.ErrInvalidAddress, http.StatusBadRequest},
		{market.ErrNoAssetDirectory, http.StatusNotImplemented},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
