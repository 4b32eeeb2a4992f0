package valuation

import (
	"context"
	"fmt"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
)

// OracleAuthority answers whether an address may submit fairness values
type OracleAuthority interface {
	IsOracle(addr domain.Address) bool
}

// ValuationService accepts and validates fairness-value assignments from the oracle.
// It never computes values itself.
type ValuationService struct {
	BundleRepo domain.BundleRepository
	Authority  OracleAuthority
	Events     domain.EventSink
	Logger     *logger.Logger
}

// NewValuationService creates a new ValuationService instance
func NewValuationService(bundleRepo domain.BundleRepository, authority OracleAuthority, events domain.EventSink, log *logger.Logger) *ValuationService {
	return &ValuationService{
		BundleRepo: bundleRepo,
		Authority:  authority,
		Events:     events,
		Logger:     log,
	}
}

// RequestAssignment signals the oracle that a bundle has enough interest to be priced.
// It does not change state.
func (s *ValuationService) RequestAssignment(ctx context.Context, bundleID domain.BundleID, caller domain.Address) error {
	bundle, err := s.BundleRepo.GetByID(ctx, bundleID)
	if err != nil {
		return err
	}
	if err := bundle.CheckActive(); err != nil {
		return err
	}
	if !bundle.HasQuorum() {
		return fmt.Errorf("%w: bundle %d has %d of %d buyers",
			domain.ErrInsufficientInterest, bundleID, len(bundle.Buyers), bundle.RequiredBuyers)
	}

	ev := domain.NewEvent(domain.EventAssignmentRequested)
	ev.BundleID = bundleID
	ev.Actor = caller.Normalize()
	ev.Buyers = append([]domain.Address(nil), bundle.Buyers...)
	ev.Amount = bundle.Price
	s.Events.Emit(ctx, ev)

	s.Logger.Info("assignment requested", "bundle_id", bundleID, "caller", ev.Actor)
	return nil
}

// SetAssignment records the oracle's fairness values for a bundle
// Logic:
//  1. Caller must be the designated oracle
//  2. Buyer and value lists must have the same length
//  3. Bundle must be Active with no payment accepted yet
//  4. Every buyer must be interested, once; every interested buyer needs a value;
//     every value whole and non-negative
//  5. Values must sum to the bundle price exactly
//
// A rejected assignment leaves any previous one in place.
func (s *ValuationService) SetAssignment(ctx context.Context, assignment domain.Assignment, caller domain.Address) (*domain.Bundle, error) {
	caller = caller.Normalize()
	if !s.Authority.IsOracle(caller) {
		return nil, fmt.Errorf("%w: %s is not the oracle", domain.ErrUnauthorized, caller)
	}
	if len(assignment.Buyers) != len(assignment.Values) {
		return nil, fmt.Errorf("%w: %d buyers, %d values",
			domain.ErrLengthMismatch, len(assignment.Buyers), len(assignment.Values))
	}

	bundle, err := s.BundleRepo.GetByID(ctx, assignment.BundleID)
	if err != nil {
		return nil, err
	}
	if err := bundle.CheckActive(); err != nil {
		return nil, err
	}
	if n := bundle.PaidCount(); n > 0 {
		return nil, fmt.Errorf("%w: bundle %d has %d payments", domain.ErrAssignmentFrozen, bundle.ID, n)
	}
	if err := assignment.ValidateAgainst(bundle); err != nil {
		return nil, err
	}

	bundle.Assignment = assignment.Map()
	if err := s.BundleRepo.Update(ctx, bundle); err != nil {
		return nil, fmt.Errorf("failed to record assignment: %w", err)
	}

	pairs, _ := assignment.Pairs()
	ev := domain.NewEvent(domain.EventAssignmentSet)
	ev.BundleID = bundle.ID
	ev.Actor = caller
	for _, p := range pairs {
		ev.Buyers = append(ev.Buyers, p.Buyer)
		ev.Values = append(ev.Values, p.Value)
	}
	s.Events.Emit(ctx, ev)

	s.Logger.Info("assignment set", "bundle_id", bundle.ID, "buyers", len(pairs))
	return bundle, nil
}
