package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names an observable protocol event
type EventType string

const (
	EventItemListed          EventType = "ItemListed"
	EventItemWithdrawn       EventType = "ItemWithdrawn"
	EventItemReturned        EventType = "ItemReturned" // Unclaimed item sent back to the seller at settlement
	EventBundleCreated       EventType = "BundleCreated"
	EventBundleCancelled     EventType = "BundleCancelled"
	EventBuyerInterested     EventType = "BuyerInterested"
	EventBundleReady         EventType = "BundleReadyForPurchase"
	EventAssignmentRequested EventType = "AssignmentRequested"
	EventAssignmentSet       EventType = "AssignmentSet"
	EventBuyerPaid           EventType = "BuyerPaid"
	EventRefundIssued        EventType = "RefundIssued"
	EventRefundFailed        EventType = "RefundFailed"
	EventPayoutIssued        EventType = "PayoutIssued"
	EventPayoutFailed        EventType = "PayoutFailed"
	EventAssetDelivered      EventType = "AssetDelivered"
	EventDeliveryFailed      EventType = "DeliveryFailed"
	EventBundlePurchased     EventType = "BundlePurchased"
	EventOracleChanged       EventType = "OracleChanged"
)

// Event is a flat record of something that happened in the protocol.
// Only the fields relevant to Type are set.
type Event struct {
	ID           uuid.UUID
	Type         EventType
	At           time.Time
	BundleID     BundleID
	ItemID       ItemID
	ItemIDs      []ItemID
	Actor        Address // Who caused the event (seller, buyer, oracle, owner)
	Counterparty Address // Who received value or an asset, if anyone
	Amount       decimal.Decimal
	Buyers       []Address
	Values       []decimal.Decimal
	Reason       string // Failure reason for the *Failed events
}

// NewEvent stamps a fresh event of the given type
func NewEvent(t EventType) Event {
	return Event{
		ID:   uuid.New(),
		Type: t,
		At:   time.Now().UTC(),
	}
}

// IsFailure reports whether the event records a fail-soft secondary failure
func (e Event) IsFailure() bool {
	switch e.Type {
	case EventRefundFailed, EventPayoutFailed, EventDeliveryFailed:
		return true
	}
	return false
}
