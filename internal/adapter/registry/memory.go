// Package registry provides an in-process AssetRegistry used for demos and tests.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

var (
	ErrUnknownAsset = errors.New("unknown asset")
	ErrNotOwner     = errors.New("sender does not own the asset")
	ErrRejected     = errors.New("recipient rejects transfers")
)

// MemoryRegistry implements domain.AssetRegistry over an in-memory ownership table
type MemoryRegistry struct {
	mu       sync.Mutex
	owners   map[domain.AssetRef]domain.Address
	rejects  map[domain.Address]bool
	onMove   func(ctx context.Context, asset domain.AssetRef, from, to domain.Address)
	transfer int
}

// NewMemoryRegistry creates an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		owners:  make(map[domain.AssetRef]domain.Address),
		rejects: make(map[domain.Address]bool),
	}
}

// Mint creates an asset owned by owner
func (r *MemoryRegistry) Mint(asset domain.AssetRef, owner domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[asset] = owner.Normalize()
}

// RejectTransfersTo makes every transfer to addr fail until cleared with reject=false
func (r *MemoryRegistry) RejectTransfersTo(addr domain.Address, reject bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejects[addr.Normalize()] = reject
}

// OnTransfer installs a hook invoked during every transfer, before it completes.
// The hook runs without the registry lock held.
func (r *MemoryRegistry) OnTransfer(fn func(ctx context.Context, asset domain.AssetRef, from, to domain.Address)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMove = fn
}

// Transfer moves asset from one address to another
func (r *MemoryRegistry) Transfer(ctx context.Context, asset domain.AssetRef, from, to domain.Address) error {
	r.mu.Lock()
	hook := r.onMove
	r.mu.Unlock()
	if hook != nil {
		hook(ctx, asset, from, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if owner != from.Normalize() {
		return fmt.Errorf("%w: %s is owned by %s, not %s", ErrNotOwner, asset, owner, from)
	}
	if r.rejects[to.Normalize()] {
		return fmt.Errorf("%w: %s", ErrRejected, to)
	}
	r.owners[asset] = to.Normalize()
	r.transfer++
	return nil
}

// OwnerOf returns the current owner of asset
func (r *MemoryRegistry) OwnerOf(ctx context.Context, asset domain.AssetRef) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[asset]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return owner, nil
}

// OwnedBy returns every asset currently owned by addr, sorted by reference
func (r *MemoryRegistry) OwnedBy(ctx context.Context, addr domain.Address) ([]domain.AssetRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr = addr.Normalize()
	var assets []domain.AssetRef
	for asset, owner := range r.owners {
		if owner == addr {
			assets = append(assets, asset)
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].String() < assets[j].String()
	})
	return assets, nil
}

// Transfers returns the number of successful transfers so far
func (r *MemoryRegistry) Transfers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transfer
}
