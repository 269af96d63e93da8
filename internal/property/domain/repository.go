package domain

import (
	"context"
	"time"
)

// PropertyRepository is the Listing Store. Every method is an atomic unit:
// implementations must never expose a half-applied update or delete.
type PropertyRepository interface {
	// List returns every record in insertion order.
	List(ctx context.Context) ([]Property, error)
	// FindByID returns ErrPropertyNotFound when no record has the id.
	FindByID(ctx context.Context, id string) (*Property, error)
	// Create stores a new record. p.ID must be set and unused.
	Create(ctx context.Context, p Property) error
	// Update merges patch into the stored record under the store's own lock
	// or transaction and returns the result. ErrPropertyNotFound when absent.
	Update(ctx context.Context, id string, patch Patch, now time.Time) (*Property, error)
	// Delete removes the record. ErrPropertyNotFound when absent.
	Delete(ctx context.Context, id string) error
	// Filter returns the records matching f in insertion order.
	Filter(ctx context.Context, f Filter) ([]Property, error)
	// Count reports how many records are stored.
	Count(ctx context.Context) (int, error)
}

// EventPublisher receives lifecycle notifications after successful writes.
type EventPublisher interface {
	PropertyCreated(ctx context.Context, p Property) error
	PropertyUpdated(ctx context.Context, p Property) error
	PropertyDeleted(ctx context.Context, id string) error
}

// Seeder is implemented by stores that accept the one-time bootstrap load.
// It returns how many records were actually written.
type Seeder interface {
	Seed(ctx context.Context, props []Property) (int, error)
}
