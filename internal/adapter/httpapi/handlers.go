package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/journal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/dashboard"
)

// MarketReader is the read side of the market the HTTP API serves
type MarketReader interface {
	Item(ctx context.Context, id domain.ItemID) (*domain.Item, error)
	ItemList(ctx context.Context, status domain.ItemStatus) ([]*domain.Item, error)
	IsItemLocked(ctx context.Context, id domain.ItemID) (bool, error)
	Bundle(ctx context.Context, id domain.BundleID) (*domain.Bundle, error)
	BundleList(ctx context.Context, status domain.BundleStatus) ([]*domain.Bundle, error)
	BuyerInterests(ctx context.Context, id domain.BundleID) ([]dashboard.BuyerInterest, error)
	Summary(ctx context.Context) (*dashboard.SummaryResult, error)
	OwnedAssets(ctx context.Context, addr domain.Address) ([]domain.AssetRef, error)
	Oracle() domain.Address
	Owner() domain.Address
}

// EventLog pages through journaled events
type EventLog interface {
	List(ctx context.Context, after uint64, limit int) ([]journal.Entry, error)
}

const (
	defaultEventPage = 100
	maxEventPage     = 1000
)

// ItemDTO is the JSON form of an item
type ItemDTO struct {
	ID       uint64    `json:"id"`
	Registry string    `json:"registry"`
	AssetID  string    `json:"asset_id"`
	Seller   string    `json:"seller"`
	Status   string    `json:"status"`
	ListedAt time.Time `json:"listed_at"`
	Locked   *bool     `json:"locked,omitempty"`
}

// BuyerDTO is the JSON form of one buyer's interest in a bundle
type BuyerDTO struct {
	Buyer         string   `json:"buyer"`
	Items         []uint64 `json:"items"`
	AssignedValue *string  `json:"assigned_value,omitempty"`
	Paid          bool     `json:"paid"`
}

// BundleDTO is the JSON form of a bundle
type BundleDTO struct {
	ID             uint64     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Seller         string     `json:"seller"`
	ItemIDs        []uint64   `json:"item_ids"`
	Price          string     `json:"price"`
	RequiredBuyers int        `json:"required_buyers"`
	Status         string     `json:"status"`
	HasAssignment  bool       `json:"has_assignment"`
	PaidCount      int        `json:"paid_count"`
	Buyers         []BuyerDTO `json:"buyers"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SummaryDTO is the JSON form of the marketplace summary
type SummaryDTO struct {
	TotalItems       int `json:"total_items"`
	TotalBundles     int `json:"total_bundles"`
	ActiveItems      int `json:"active_items"`
	ActiveBundles    int `json:"active_bundles"`
	CompletedBundles int `json:"completed_bundles"`
}

// AssetDTO is the JSON form of an asset reference
type AssetDTO struct {
	Registry string `json:"registry"`
	AssetID  string `json:"asset_id"`
}

// EventDTO is the JSON form of a journaled event
type EventDTO struct {
	Seq          uint64    `json:"seq"`
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	At           time.Time `json:"at"`
	BundleID     uint64    `json:"bundle_id,omitempty"`
	ItemID       uint64    `json:"item_id,omitempty"`
	ItemIDs      []uint64  `json:"item_ids,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	Counterparty string    `json:"counterparty,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	Buyers       []string  `json:"buyers,omitempty"`
	Values       []string  `json:"values,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// Handler serves the read-only marketplace API
type Handler struct {
	Market MarketReader
	Events EventLog // Nil disables /api/events
	Logger *logger.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(m MarketReader, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Market: m, Logger: log}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	RespondError(c, status, code, err)
}

func badRequest(c *gin.Context, err error) {
	RespondError(c, http.StatusBadRequest, "invalid_argument", err)
}

func idParam(c *gin.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, c.Param(name))
	}
	return id, nil
}

func toItemDTO(item *domain.Item) ItemDTO {
	return ItemDTO{
		ID:       uint64(item.ID),
		Registry: item.Asset.Registry,
		AssetID:  item.Asset.AssetID,
		Seller:   item.Seller.String(),
		Status:   string(item.Status),
		ListedAt: item.ListedAt,
	}
}

func toIDs(ids []domain.ItemID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}

func toBuyerDTO(bi dashboard.BuyerInterest) BuyerDTO {
	dto := BuyerDTO{Buyer: bi.Buyer.String(), Items: toIDs(bi.Items), Paid: bi.HasPaid}
	if bi.HasValue {
		v := bi.AssignedValue.String()
		dto.AssignedValue = &v
	}
	return dto
}

func toEventDTO(e journal.Entry) EventDTO {
	ev := e.Event
	dto := EventDTO{
		Seq:          e.Seq,
		ID:           ev.ID.String(),
		Type:         string(ev.Type),
		At:           ev.At,
		BundleID:     uint64(ev.BundleID),
		ItemID:       uint64(ev.ItemID),
		Actor:        ev.Actor.String(),
		Counterparty: ev.Counterparty.String(),
		Reason:       ev.Reason,
	}
	if len(ev.ItemIDs) > 0 {
		dto.ItemIDs = toIDs(ev.ItemIDs)
	}
	if !ev.Amount.IsZero() {
		dto.Amount = ev.Amount.String()
	}
	for _, b := range ev.Buyers {
		dto.Buyers = append(dto.Buyers, b.String())
	}
	for _, v := range ev.Values {
		dto.Values = append(dto.Values, v.String())
	}
	return dto
}

func toBundleDTO(b *domain.Bundle) BundleDTO {
	dto := BundleDTO{
		ID:             uint64(b.ID),
		Name:           b.DisplayName(),
		Description:    b.DisplayDescription(),
		Seller:         b.Seller.String(),
		ItemIDs:        toIDs(b.ItemIDs),
		Price:          b.Price.String(),
		RequiredBuyers: b.RequiredBuyers,
		Status:         string(b.Status),
		HasAssignment:  b.Assignment != nil,
		PaidCount:      b.PaidCount(),
		Buyers:         make([]BuyerDTO, 0, len(b.Buyers)),
		CreatedAt:      b.CreatedAt,
	}
	for _, buyer := range b.Buyers {
		value, ok := b.AssignedValue(buyer)
		dto.Buyers = append(dto.Buyers, toBuyerDTO(dashboard.BuyerInterest{
			Buyer:         buyer,
			Items:         b.Interests[buyer],
			AssignedValue: value,
			HasValue:      ok,
			HasPaid:       b.Paid[buyer],
		}))
	}
	return dto
}

// HealthCheck reports liveness
func HealthCheck(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

// ListItems handles GET /api/items?status=
func (h *Handler) ListItems(c *gin.Context) {
	status := domain.ItemStatus(strings.ToUpper(c.Query("status")))
	switch status {
	case "", domain.ItemStatusListed, domain.ItemStatusSold, domain.ItemStatusWithdrawn:
	default:
		badRequest(c, fmt.Errorf("unknown item status %q", status))
		return
	}

	items, err := h.Market.ItemList(c.Request.Context(), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, toItemDTO(item))
	}
	RespondOK(c, gin.H{"items": out})
}

// GetItem handles GET /api/items/:id
func (h *Handler) GetItem(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	item, err := h.Market.Item(ctx, domain.ItemID(id))
	if err != nil {
		h.fail(c, err)
		return
	}
	locked, err := h.Market.IsItemLocked(ctx, item.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	dto := toItemDTO(item)
	dto.Locked = &locked
	RespondOK(c, dto)
}

// ListBundles handles GET /api/bundles?status=
func (h *Handler) ListBundles(c *gin.Context) {
	status := domain.BundleStatus(strings.ToUpper(c.Query("status")))
	switch status {
	case "", domain.BundleStatusActive, domain.BundleStatusCompleted, domain.BundleStatusCancelled:
	default:
		badRequest(c, fmt.Errorf("unknown bundle status %q", status))
		return
	}

	bundles, err := h.Market.BundleList(c.Request.Context(), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]BundleDTO, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, toBundleDTO(b))
	}
	RespondOK(c, gin.H{"bundles": out})
}

// GetBundle handles GET /api/bundles/:id
func (h *Handler) GetBundle(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}

	bundle, err := h.Market.Bundle(c.Request.Context(), domain.BundleID(id))
	if err != nil {
		h.fail(c, err)
		return
	}
	RespondOK(c, toBundleDTO(bundle))
}

// GetBuyerInterests handles GET /api/bundles/:id/buyers
func (h *Handler) GetBuyerInterests(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}

	interests, err := h.Market.BuyerInterests(c.Request.Context(), domain.BundleID(id))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]BuyerDTO, 0, len(interests))
	for _, bi := range interests {
		out = append(out, toBuyerDTO(bi))
	}
	RespondOK(c, gin.H{"bundle_id": id, "buyers": out})
}

// GetSummary handles GET /api/summary
func (h *Handler) GetSummary(c *gin.Context) {
	s, err := h.Market.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	RespondOK(c, SummaryDTO{
		TotalItems:       s.TotalItems,
		TotalBundles:     s.TotalBundles,
		ActiveItems:      s.ActiveItems,
		ActiveBundles:    s.ActiveBundles,
		CompletedBundles: s.CompletedBundles,
	})
}

// GetOracle handles GET /api/oracle
func (h *Handler) GetOracle(c *gin.Context) {
	RespondOK(c, gin.H{
		"oracle": h.Market.Oracle().String(),
		"owner":  h.Market.Owner().String(),
	})
}

// GetOwnedAssets handles GET /api/assets/:address
func (h *Handler) GetOwnedAssets(c *gin.Context) {
	addr := domain.Address(c.Param("address")).Normalize()
	if addr.IsZero() {
		badRequest(c, domain.ErrInvalidAddress)
		return
	}

	assets, err := h.Market.OwnedAssets(c.Request.Context(), addr)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]AssetDTO, 0, len(assets))
	for _, a := range assets {
		out = append(out, AssetDTO{Registry: a.Registry, AssetID: a.AssetID})
	}
	RespondOK(c, gin.H{"address": addr.String(), "assets": out})
}

// ListEvents handles GET /api/events?after=&limit=
func (h *Handler) ListEvents(c *gin.Context) {
	after, err := strconv.ParseUint(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid after: %q", c.Query("after")))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultEventPage)))
	if err != nil || limit <= 0 || limit > maxEventPage {
		badRequest(c, fmt.Errorf("limit must be between 1 and %d", maxEventPage))
		return
	}

	entries, err := h.Events.List(c.Request.Context(), after, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]EventDTO, 0, len(entries))
	next := after
	for _, e := range entries {
		out = append(out, toEventDTO(e))
		next = e.Seq
	}
	RespondOK(c, gin.H{"events": out, "next": next})
}
