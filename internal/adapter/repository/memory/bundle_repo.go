package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

// bundleRepository implements domain.BundleRepository
type bundleRepository struct {
	mu      sync.RWMutex
	nextID  domain.BundleID
	bundles map[domain.BundleID]*domain.Bundle
}

// NewBundleRepository creates an empty bundle repository
func NewBundleRepository() domain.BundleRepository {
	return &bundleRepository{
		nextID:  1,
		bundles: make(map[domain.BundleID]*domain.Bundle),
	}
}

// Create assigns the next BundleID and stores the bundle
func (r *bundleRepository) Create(ctx context.Context, bundle *domain.Bundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bundle.ID = r.nextID
	r.nextID++
	r.bundles[bundle.ID] = bundle.Clone()
	return nil
}

// GetByID retrieves a bundle by its ID
func (r *bundleRepository) GetByID(ctx context.Context, id domain.BundleID) (*domain.Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bundle, ok := r.bundles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrBundleNotFound, id)
	}
	return bundle.Clone(), nil
}

// Update overwrites a stored bundle
func (r *bundleRepository) Update(ctx context.Context, bundle *domain.Bundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bundles[bundle.ID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrBundleNotFound, bundle.ID)
	}
	r.bundles[bundle.ID] = bundle.Clone()
	return nil
}

// List retrieves bundles in ID order, optionally filtered by status
func (r *bundleRepository) List(ctx context.Context, statusFilter domain.BundleStatus) ([]*domain.Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bundles := make([]*domain.Bundle, 0, len(r.bundles))
	for _, bundle := range r.bundles {
		if statusFilter == "" || bundle.Status == statusFilter {
			bundles = append(bundles, bundle.Clone())
		}
	}
	sort.Slice(bundles, func(i, j int) bool {
		return bundles[i].ID < bundles[j].ID
	})
	return bundles, nil
}
