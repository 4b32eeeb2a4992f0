// Package treasury provides an in-process balance book implementing domain.Treasury.
package treasury

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRejected          = errors.New("recipient rejects payments")
)

// MemoryTreasury tracks participant balances and the protocol's escrowed funds
type MemoryTreasury struct {
	mu       sync.Mutex
	balances map[domain.Address]decimal.Decimal
	rejects  map[domain.Address]bool
	escrow   decimal.Decimal
}

// NewMemoryTreasury creates an empty treasury
func NewMemoryTreasury() *MemoryTreasury {
	return &MemoryTreasury{
		balances: make(map[domain.Address]decimal.Decimal),
		rejects:  make(map[domain.Address]bool),
	}
}

// Deposit credits addr with amount (funding a participant)
func (t *MemoryTreasury) Deposit(addr domain.Address, amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr = addr.Normalize()
	t.balances[addr] = t.balances[addr].Add(amount)
}

// Balance returns the balance of addr
func (t *MemoryTreasury) Balance(addr domain.Address) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[addr.Normalize()]
}

// Escrow returns the funds currently held by the protocol
func (t *MemoryTreasury) Escrow() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.escrow
}

// RejectPaymentsTo makes every disbursement to addr fail until cleared with reject=false
func (t *MemoryTreasury) RejectPaymentsTo(addr domain.Address, reject bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rejects[addr.Normalize()] = reject
}

// Collect moves amount from a participant into protocol escrow
func (t *MemoryTreasury) Collect(ctx context.Context, from domain.Address, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	from = from.Normalize()
	if t.balances[from].LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, t.balances[from], amount)
	}
	t.balances[from] = t.balances[from].Sub(amount)
	t.escrow = t.escrow.Add(amount)
	return nil
}

// Disburse moves amount from protocol escrow to a participant
func (t *MemoryTreasury) Disburse(ctx context.Context, to domain.Address, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	to = to.Normalize()
	if t.rejects[to] {
		return fmt.Errorf("%w: %s", ErrRejected, to)
	}
	if t.escrow.LessThan(amount) {
		return fmt.Errorf("%w: escrow holds %s, needs %s", ErrInsufficientFunds, t.escrow, amount)
	}
	t.escrow = t.escrow.Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}
