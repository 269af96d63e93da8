// Package memory is the default Listing Store: an owned, mutex-guarded
// collection indexed by id that keeps insertion order for listing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Abdurahmanit/property-service/internal/property/domain"
)

var _ domain.PropertyRepository = (*PropertyRepository)(nil)

type PropertyRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Property
	order []string
}

func NewPropertyRepository() *PropertyRepository {
	return &PropertyRepository{byID: make(map[string]*domain.Property)}
}

func (r *PropertyRepository) List(_ context.Context) ([]domain.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Property, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out, nil
}

func (r *PropertyRepository) FindByID(_ context.Context, id string) (*domain.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PropertyRepository) Create(_ context.Context, p domain.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; exists {
		return domain.ErrDuplicateID
	}
	r.byID[p.ID] = &p
	r.order = append(r.order, p.ID)
	return nil
}

func (r *PropertyRepository) Update(_ context.Context, id string, patch domain.Patch, now time.Time) (*domain.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}
	merged := *cur
	patch.Apply(&merged, now)
	r.byID[id] = &merged

	out := merged
	return &out, nil
}

func (r *PropertyRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return domain.ErrPropertyNotFound
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *PropertyRepository) Filter(_ context.Context, f domain.Filter) ([]domain.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Property, 0)
	for _, id := range r.order {
		if p := r.byID[id]; f.Matches(*p) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *PropertyRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order), nil
}

// Seed bulk-loads bootstrap records in one critical section. Records whose
// id is already present are skipped.
func (r *PropertyRepository) Seed(_ context.Context, props []domain.Property) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loaded := 0
	for i := range props {
		p := props[i]
		if _, exists := r.byID[p.ID]; exists {
			continue
		}
		r.byID[p.ID] = &p
		r.order = append(r.order, p.ID)
		loaded++
	}
	return loaded, nil
}
