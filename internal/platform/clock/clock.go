// Package clock abstracts time and identity generation so the listing
// service stays deterministic under test.
package clock

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Clock interface {
	Now() time.Time
}

// Real returns the wall clock in UTC at millisecond precision, the finest
// resolution every store (BSON dates included) keeps.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

type IDGenerator interface {
	NewID() string
}

// UUIDGenerator produces random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// Stub is a manually advanced clock. Safe for concurrent use.
type Stub struct {
	mu  sync.Mutex
	now time.Time
}

func NewStub(t time.Time) *Stub {
	return &Stub{now: t}
}

func (c *Stub) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Stub) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
