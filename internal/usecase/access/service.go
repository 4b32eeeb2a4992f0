// Package access holds the owner-managed designation of the oracle address.
package access

import (
	"context"
	"fmt"
	"sync"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
)

// AccessControl is a single-writer register for the oracle address.
// The owner is fixed at construction.
type AccessControl struct {
	mu     sync.RWMutex
	owner  domain.Address
	oracle domain.Address

	Events domain.EventSink
	Logger *logger.Logger
}

// NewAccessControl creates an AccessControl owned by owner with an initial oracle, which may be empty
func NewAccessControl(owner, oracle domain.Address, events domain.EventSink, log *logger.Logger) *AccessControl {
	return &AccessControl{
		owner:  owner.Normalize(),
		oracle: oracle.Normalize(),
		Events: events,
		Logger: log,
	}
}

// SetOracle replaces the oracle address. Only the owner may call it.
func (a *AccessControl) SetOracle(ctx context.Context, oracle, caller domain.Address) error {
	caller = caller.Normalize()
	oracle = oracle.Normalize()

	a.mu.Lock()
	if caller.IsZero() || caller != a.owner {
		a.mu.Unlock()
		return fmt.Errorf("%w: only the owner may set the oracle", domain.ErrUnauthorized)
	}
	if oracle.IsZero() {
		a.mu.Unlock()
		return fmt.Errorf("%w: oracle", domain.ErrInvalidAddress)
	}
	previous := a.oracle
	a.oracle = oracle
	a.mu.Unlock()

	ev := domain.NewEvent(domain.EventOracleChanged)
	ev.Actor = caller
	ev.Counterparty = oracle
	a.Events.Emit(ctx, ev)

	a.Logger.Info("oracle changed", "previous", previous, "oracle", oracle)
	return nil
}

// IsOracle reports whether addr is the designated oracle. No oracle means nobody is.
func (a *AccessControl) IsOracle(addr domain.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return !a.oracle.IsZero() && addr.Normalize() == a.oracle
}

// Oracle returns the designated oracle address
func (a *AccessControl) Oracle() domain.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.oracle
}

// Owner returns the protocol owner
func (a *AccessControl) Owner() domain.Address {
	return a.owner
}
