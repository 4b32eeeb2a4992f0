// Package memory provides in-process repositories. Stored entities are
// cloned on the way in and out so callers never alias repository state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

// itemRepository implements domain.ItemRepository
type itemRepository struct {
	mu     sync.RWMutex
	nextID domain.ItemID
	items  map[domain.ItemID]*domain.Item
}

// NewItemRepository creates an empty item repository
func NewItemRepository() domain.ItemRepository {
	return &itemRepository{
		nextID: 1,
		items:  make(map[domain.ItemID]*domain.Item),
	}
}

// Create assigns the next ItemID and stores the item
func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.nextID
	r.nextID++
	r.items[item.ID] = item.Clone()
	return nil
}

// GetByID retrieves an item by its ID
func (r *itemRepository) GetByID(ctx context.Context, id domain.ItemID) (*domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, id)
	}
	return item.Clone(), nil
}

// Update overwrites a stored item
func (r *itemRepository) Update(ctx context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrItemNotFound, item.ID)
	}
	r.items[item.ID] = item.Clone()
	return nil
}

// List retrieves items in ID order, optionally filtered by status
func (r *itemRepository) List(ctx context.Context, statusFilter domain.ItemStatus) ([]*domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*domain.Item, 0, len(r.items))
	for _, item := range r.items {
		if statusFilter == "" || item.Status == statusFilter {
			items = append(items, item.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})
	return items, nil
}
