package market

import (
	"context"
	"fmt"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

type guardKey struct{}

// guarded reports whether ctx belongs to an operation that already holds m's lock
func (m *Market) guarded(ctx context.Context) bool {
	owner, _ := ctx.Value(guardKey{}).(*Market)
	return owner == m
}

// mutate runs fn with exclusive access to the ledger.
// The lock stays held across external calls made by fn. A mutating call made
// with fn's context, for example from an asset registry callback, fails with
// ErrReentrantCall instead of deadlocking.
func (m *Market) mutate(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if m.guarded(ctx) {
		m.Logger.Warn("reentrant call rejected", "op", op)
		return fmt.Errorf("%w: %s", domain.ErrReentrantCall, op)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, guardKey{}, m))
}

// read runs fn with shared access. Reads issued from inside a mutating call
// already see consistent state and run without taking the lock again.
func (m *Market) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.guarded(ctx) {
		return fn(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(ctx)
}
