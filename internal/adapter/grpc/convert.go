package grpc

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/dashboard"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/settlement"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Requests and responses are google.protobuf.Struct messages.
// IDs travel as numbers, amounts as decimal strings.

func field(req *structpb.Struct, name string) (*structpb.Value, bool) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func uintValue(v *structpb.Value, name string) (uint64, error) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue < 0 || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a non-negative integer", name)
	}
	return uint64(n.NumberValue), nil
}

func uintField(req *structpb.Struct, name string) (uint64, error) {
	v, ok := field(req, name)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "missing field %q", name)
	}
	return uintValue(v, name)
}

func stringField(req *structpb.Struct, name string) string {
	v, ok := field(req, name)
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func requiredString(req *structpb.Struct, name string) (string, error) {
	s := stringField(req, name)
	if strings.TrimSpace(s) == "" {
		return "", status.Errorf(codes.InvalidArgument, "missing field %q", name)
	}
	return s, nil
}

func decimalField(req *structpb.Struct, name string) (decimal.Decimal, error) {
	s, err := requiredString(req, name)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return d, nil
}

func listField(req *structpb.Struct, name string) []*structpb.Value {
	v, ok := field(req, name)
	if !ok {
		return nil
	}
	return v.GetListValue().GetValues()
}

func itemIDsField(req *structpb.Struct, name string) ([]domain.ItemID, error) {
	values := listField(req, name)
	ids := make([]domain.ItemID, 0, len(values))
	for _, v := range values {
		n, err := uintValue(v, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, domain.ItemID(n))
	}
	return ids, nil
}

func stringsField(req *structpb.Struct, name string) []string {
	values := listField(req, name)
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}

func itemStatusField(req *structpb.Struct) (domain.ItemStatus, error) {
	s := domain.ItemStatus(strings.ToUpper(stringField(req, "status")))
	switch s {
	case "", domain.ItemStatusListed, domain.ItemStatusSold, domain.ItemStatusWithdrawn:
		return s, nil
	}
	return "", status.Errorf(codes.InvalidArgument, "unknown item status %q", s)
}

func bundleStatusField(req *structpb.Struct) (domain.BundleStatus, error) {
	s := domain.BundleStatus(strings.ToUpper(stringField(req, "status")))
	switch s {
	case "", domain.BundleStatusActive, domain.BundleStatusCompleted, domain.BundleStatusCancelled:
		return s, nil
	}
	return "", status.Errorf(codes.InvalidArgument, "unknown bundle status %q", s)
}

func itemIDList(ids []domain.ItemID) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}

func assetMap(asset domain.AssetRef) map[string]interface{} {
	return map[string]interface{}{
		"registry": asset.Registry,
		"asset_id": asset.AssetID,
	}
}

func itemMap(item *domain.Item) map[string]interface{} {
	return map[string]interface{}{
		"id":        uint64(item.ID),
		"registry":  item.Asset.Registry,
		"asset_id":  item.Asset.AssetID,
		"seller":    item.Seller.String(),
		"status":    string(item.Status),
		"listed_at": item.ListedAt.UTC().Format(time.RFC3339),
	}
}

func buyerMap(bi dashboard.BuyerInterest) map[string]interface{} {
	m := map[string]interface{}{
		"buyer": bi.Buyer.String(),
		"items": itemIDList(bi.Items),
		"paid":  bi.HasPaid,
	}
	if bi.HasValue {
		m["assigned_value"] = bi.AssignedValue.String()
	}
	return m
}

func bundleMap(b *domain.Bundle) map[string]interface{} {
	buyers := make([]interface{}, len(b.Buyers))
	for i, buyer := range b.Buyers {
		value, hasValue := b.AssignedValue(buyer)
		buyers[i] = buyerMap(dashboard.BuyerInterest{
			Buyer:         buyer,
			Items:         b.Interests[buyer],
			AssignedValue: value,
			HasValue:      hasValue,
			HasPaid:       b.Paid[buyer],
		})
	}
	return map[string]interface{}{
		"id":              uint64(b.ID),
		"name":            b.DisplayName(),
		"description":     b.DisplayDescription(),
		"seller":          b.Seller.String(),
		"item_ids":        itemIDList(b.ItemIDs),
		"price":           b.Price.String(),
		"required_buyers": b.RequiredBuyers,
		"status":          string(b.Status),
		"has_assignment":  b.Assignment != nil,
		"paid_count":      b.PaidCount(),
		"buyers":          buyers,
		"created_at":      b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func transferMap(r settlement.TransferResult) map[string]interface{} {
	m := map[string]interface{}{
		"kind":    string(r.Kind),
		"item_id": uint64(r.ItemID),
		"to":      r.To.String(),
		"amount":  r.Amount.String(),
		"ok":      r.OK,
	}
	if r.Err != nil {
		m["error"] = r.Err.Error()
	}
	return m
}

func transferList(results []settlement.TransferResult) []interface{} {
	out := make([]interface{}, len(results))
	for i, r := range results {
		out[i] = transferMap(r)
	}
	return out
}

func outcomeMap(o *settlement.Outcome) map[string]interface{} {
	m := map[string]interface{}{
		"bundle":          bundleMap(o.Bundle),
		"assigned_value":  o.AssignedValue.String(),
		"settled":         o.Settled,
		"total_collected": o.TotalCollected.String(),
		"payouts":         transferList(o.Payouts),
		"deliveries":      transferList(o.Deliveries),
	}
	if o.Refund != nil {
		m["refund"] = transferMap(*o.Refund)
	}
	return m
}

func summaryMap(s *dashboard.SummaryResult) map[string]interface{} {
	return map[string]interface{}{
		"total_items":       s.TotalItems,
		"total_bundles":     s.TotalBundles,
		"active_items":      s.ActiveItems,
		"active_bundles":    s.ActiveBundles,
		"completed_bundles": s.CompletedBundles,
	}
}

func toStruct(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}
