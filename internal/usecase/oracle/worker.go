package oracle

import (
	"context"
	"errors"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
	"github.com/visvasity/topic"
)

// Ledger is the part of the market the oracle reads from and submits to
type Ledger interface {
	Bundle(ctx context.Context, id domain.BundleID) (*domain.Bundle, error)
	SetAssignment(ctx context.Context, assignment domain.Assignment, caller domain.Address) (*domain.Bundle, error)
}

// Worker prices bundles when the protocol asks for an assignment
type Worker struct {
	Ledger  Ledger
	Address domain.Address // The oracle address the worker submits as
	Logger  *logger.Logger
}

// NewWorker creates a new Worker instance
func NewWorker(ledger Ledger, address domain.Address, log *logger.Logger) *Worker {
	return &Worker{Ledger: ledger, Address: address.Normalize(), Logger: log}
}

// Run handles events from receiver until ctx is done.
// It reacts to AssignmentRequested and BundleReadyForPurchase.
func (w *Worker) Run(ctx context.Context, receiver *topic.Receiver[domain.Event]) error {
	defer receiver.Close()

	eventsCh, err := topic.ReceiveCh(receiver)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)

		case ev := <-eventsCh:
			switch ev.Type {
			case domain.EventAssignmentRequested, domain.EventBundleReady:
				if err := w.Price(ctx, ev.BundleID); err != nil {
					w.Logger.Warn("could not price bundle", "bundle_id", ev.BundleID, "trigger", ev.Type, "err", err)
				}
			}
		}
	}
}

// Price computes and submits the assignment for one bundle.
// Bundles that already carry an assignment or have taken payments are skipped.
func (w *Worker) Price(ctx context.Context, bundleID domain.BundleID) error {
	bundle, err := w.Ledger.Bundle(ctx, bundleID)
	if err != nil {
		return err
	}
	if !bundle.IsActive() || !bundle.HasQuorum() || bundle.Assignment != nil || bundle.PaidCount() > 0 {
		return nil
	}

	assignment, err := Compute(bundle)
	if err != nil {
		return err
	}

	if _, err := w.Ledger.SetAssignment(ctx, assignment, w.Address); err != nil {
		if errors.Is(err, domain.ErrAssignmentFrozen) {
			return nil
		}
		return err
	}

	w.Logger.Info("bundle priced", "bundle_id", bundleID, "buyers", len(assignment.Buyers))
	return nil
}
