package grpc

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/bundleledger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/itemledger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/market"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/settlement"
)

// Server implements the BundleMarket gRPC service
type Server struct {
	Market *market.Market
	Logger *logger.Logger
}

// NewServer creates a new gRPC server instance
func NewServer(m *market.Market, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{Market: m, Logger: log}
}

// callerFrom returns the address attached by AuthInterceptor
func callerFrom(ctx context.Context) (domain.Address, error) {
	caller, ok := domain.CallerFromContext(ctx)
	if !ok {
		return "", status.Errorf(codes.Unauthenticated, "missing %s header", CallerHeader)
	}
	return caller, nil
}

// ListItem handles the ListItem RPC. The caller is the seller.
func (s *Server) ListItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	registry, err := requiredString(req, "registry")
	if err != nil {
		return nil, err
	}
	assetID, err := requiredString(req, "asset_id")
	if err != nil {
		return nil, err
	}

	item, err := s.Market.ListItem(ctx, itemledger.ListItemInput{
		Asset:  domain.AssetRef{Registry: registry, AssetID: assetID},
		Seller: caller,
	})
	if err != nil {
		return nil, s.fail("ListItem", err)
	}
	return toStruct(itemMap(item))
}

// WithdrawItem handles the WithdrawItem RPC
func (s *Server) WithdrawItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	itemID, err := uintField(req, "item_id")
	if err != nil {
		return nil, err
	}

	item, err := s.Market.WithdrawItem(ctx, domain.ItemID(itemID), caller)
	if err != nil {
		return nil, s.fail("WithdrawItem", err)
	}
	return toStruct(itemMap(item))
}

// CreateBundle handles the CreateBundle RPC. The caller is the seller.
func (s *Server) CreateBundle(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	itemIDs, err := itemIDsField(req, "item_ids")
	if err != nil {
		return nil, err
	}
	price, err := decimalField(req, "price")
	if err != nil {
		return nil, err
	}
	required, err := uintField(req, "required_buyers")
	if err != nil {
		return nil, err
	}

	bundle, err := s.Market.CreateBundle(ctx, bundleledger.CreateBundleInput{
		Seller:         caller,
		ItemIDs:        itemIDs,
		Price:          price,
		RequiredBuyers: int(required),
		Name:           stringField(req, "name"),
		Description:    stringField(req, "description"),
	})
	if err != nil {
		return nil, s.fail("CreateBundle", err)
	}
	return toStruct(bundleMap(bundle))
}

// CancelBundle handles the CancelBundle RPC
func (s *Server) CancelBundle(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	bundleID, err := uintField(req, "bundle_id")
	if err != nil {
		return nil, err
	}

	bundle, err := s.Market.CancelBundle(ctx, domain.BundleID(bundleID), caller)
	if err != nil {
		return nil, s.fail("CancelBundle", err)
	}
	return toStruct(bundleMap(bundle))
}

// ExpressInterest handles the ExpressInterest RPC. The caller is the buyer.
func (s *Server) ExpressInterest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	bundleID, err := uintField(req, "bundle_id")
	if err != nil {
		return nil, err
	}
	itemIDs, err := itemIDsField(req, "item_ids")
	if err != nil {
		return nil, err
	}

	bundle, err := s.Market.ExpressInterest(ctx, domain.BundleID(bundleID), caller, itemIDs)
	if err != nil {
		return nil, s.fail("ExpressInterest", err)
	}
	return toStruct(bundleMap(bundle))
}

// RequestAssignment handles the RequestAssignment RPC
func (s *Server) RequestAssignment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	bundleID, err := uintField(req, "bundle_id")
	if err != nil {
		return nil, err
	}

	if err := s.Market.RequestAssignment(ctx, domain.BundleID(bundleID), caller); err != nil {
		return nil, s.fail("RequestAssignment", err)
	}
	return toStruct(map[string]interface{}{"bundle_id": bundleID, "requested": true})
}

// SetAssignment handles the SetAssignment RPC. Only the oracle may call it.
// Buyers and values are parallel lists; values are decimal strings.
func (s *Server) SetAssignment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	bundleID, err := uintField(req, "bundle_id")
	if err != nil {
		return nil, err
	}

	assignment := domain.Assignment{BundleID: domain.BundleID(bundleID)}
	for _, buyer := range stringsField(req, "buyers") {
		assignment.Buyers = append(assignment.Buyers, domain.Address(buyer))
	}
	for _, raw := range stringsField(req, "values") {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid values format: %v", err)
		}
		assignment.Values = append(assignment.Values, v)
	}

	bundle, err := s.Market.SetAssignment(ctx, assignment, caller)
	if err != nil {
		return nil, s.fail("SetAssignment", err)
	}
	return toStruct(bundleMap(bundle))
}

// Pay handles the Pay RPC. The caller is the paying buyer.
func (s *Server) Pay(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	bundleID, err := uintField(req, "bundle_id")
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}

	outcome, err := s.Market.Pay(ctx, settlement.PayInput{
		BundleID: domain.BundleID(bundleID),
		Buyer:    caller,
		Amount:   amount,
	})
	if err != nil {
		return nil, s.fail("Pay", err)
	}
	return toStruct(outcomeMap(outcome))
}

// SetOracle handles the SetOracle RPC. Only the owner may call it.
func (s *Server) SetOracle(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	oracle := domain.Address(stringField(req, "oracle"))

	if err := s.Market.SetOracle(ctx, oracle, caller); err != nil {
		return nil, s.fail("SetOracle", err)
	}
	return s.GetOracle(ctx, req)
}

// GetItem handles the GetItem RPC
func (s *Server) GetItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	itemID, err := uintField(req, "item_id")
	if err != nil {
		return nil, err
	}

	item, err := s.Market.Item(ctx, domain.ItemID(itemID))
	if err != nil {
		return nil, s.fail("GetItem", err)
	}
	locked, err := s.Market.IsItemLocked(ctx, item.ID)
	if err != nil {
		return nil, s.fail("GetItem", err)
	}

	m := itemMap(item)
	m["locked"] = locked
	return toStruct(m)
}

// ListItems handles the ListItems RPC with an optional status filter
func (s *Server) ListItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	statusFilter, err := itemStatusField(req)
	if err != nil {
		return nil, err
	}

	items, err := s.Market.ItemList(ctx, statusFilter)
	if err != nil {
		return nil, s.fail("ListItems", err)
	}

	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, itemMap(item))
	}
	return toStruct(map[string]interface{}{"items": out})
}

// GetBundle handles the GetBundle RPC
func (s *Server) GetBundle(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bundleID, err := uintField(req, "bundle_id")
	if err != nil {
		return nil, err
	}

	bundle, err := s.Market.Bundle(ctx, domain.BundleID(bundleID))
	if err != nil {
		return nil, s.fail("GetBundle", err)
	}
	return toStruct(bundleMap(bundle))
}

// ListBundles handles the ListBundles RPC with an optional status filter
func (s *Server) ListBundles(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	statusFilter, err := bundleStatusField(req)
	if err != nil {
		return nil, err
	}

	bundles, err := s.Market.BundleList(ctx, statusFilter)
	if err != nil {
		return nil, s.fail("ListBundles", err)
	}

	out := make([]interface{}, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, bundleMap(b))
	}
	return toStruct(map[string]interface{}{"bundles": out})
}

// GetBuyerInterests handles the GetBuyerInterests RPC
func (s *Server) GetBuyerInterests(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bundleID, err := uintField(req, "bundle_id")
	if err != nil {
		return nil, err
	}

	interests, err := s.Market.BuyerInterests(ctx, domain.BundleID(bundleID))
	if err != nil {
		return nil, s.fail("GetBuyerInterests", err)
	}

	out := make([]interface{}, 0, len(interests))
	for _, bi := range interests {
		out = append(out, buyerMap(bi))
	}
	return toStruct(map[string]interface{}{"bundle_id": bundleID, "buyers": out})
}

// GetSummary handles the GetSummary RPC
func (s *Server) GetSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	summary, err := s.Market.Summary(ctx)
	if err != nil {
		return nil, s.fail("GetSummary", err)
	}
	return toStruct(summaryMap(summary))
}

// GetOracle handles the GetOracle RPC
func (s *Server) GetOracle(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]interface{}{
		"oracle": s.Market.Oracle().String(),
		"owner":  s.Market.Owner().String(),
	})
}

// GetOwnedAssets handles the GetOwnedAssets RPC.
// The address defaults to the caller when omitted.
func (s *Server) GetOwnedAssets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	addr := domain.Address(stringField(req, "address"))
	if addr.IsZero() {
		caller, err := callerFrom(ctx)
		if err != nil {
			return nil, err
		}
		addr = caller
	}

	assets, err := s.Market.OwnedAssets(ctx, addr.Normalize())
	if err != nil {
		return nil, s.fail("GetOwnedAssets", err)
	}

	out := make([]interface{}, 0, len(assets))
	for _, a := range assets {
		out = append(out, assetMap(a))
	}
	return toStruct(map[string]interface{}{"address": addr.Normalize().String(), "assets": out})
}

// fail maps err to a status and logs anything unexpected
func (s *Server) fail(method string, err error) error {
	st := mapError(err)
	if status.Code(st) == codes.Internal {
		s.Logger.Error("rpc failed", "method", method, "err", err)
	}
	return st
}

var errorCodes = []struct {
	code codes.Code
	errs []error
}{
	{codes.NotFound, []error{domain.ErrItemNotFound, domain.ErrBundleNotFound}},
	{codes.PermissionDenied, []error{
		domain.ErrUnauthorized, domain.ErrNotSeller, domain.ErrNotSellerOfAll, domain.ErrNotInterested,
	}},
	{codes.FailedPrecondition, []error{
		domain.ErrNotActive, domain.ErrAlreadyCompleted, domain.ErrAlreadySold, domain.ErrItemLocked,
		domain.ErrDuplicateInterest, domain.ErrQuorumReached, domain.ErrInsufficientInterest,
		domain.ErrAssignmentFrozen, domain.ErrAssignmentIncomplete, domain.ErrAlreadyPaid, domain.ErrValueNotSet,
	}},
	{codes.Aborted, []error{domain.ErrTransferFailed, domain.ErrPaymentFailed, domain.ErrReentrantCall}},
	{codes.Unimplemented, []error{market.ErrNoAssetDirectory}},
	{codes.InvalidArgument, []error{
		domain.ErrInvalidBundle, domain.ErrInvalidAmount, domain.ErrInvalidAddress, domain.ErrEmptyInterest,
		domain.ErrItemNotInBundle, domain.ErrLengthMismatch, domain.ErrBuyerNotInterested,
		domain.ErrSumMismatch, domain.ErrDuplicateBuyer, domain.ErrInsufficientPayment,
	}},
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	for _, group := range errorCodes {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return status.Error(group.code, err.Error())
			}
		}
	}

	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
