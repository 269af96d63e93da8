package domain

import "time"

type PropertyType string

const (
	TypeSale PropertyType = "sale"
	TypeRent PropertyType = "rent"
)

// Valid reports whether t is one of the known listing types.
func (t PropertyType) Valid() bool {
	return t == TypeSale || t == TypeRent
}

// Property is a single real-estate listing. ID and CreatedAt never change
// once the record is stored.
type Property struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	City        string       `json:"city"`
	Address     string       `json:"address"`
	Price       float64      `json:"price"`
	Surface     float64      `json:"surface"`
	Rooms       int          `json:"rooms"`
	Type        PropertyType `json:"type"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// NewProperty is a validated creation payload. Identity and timestamps are
// assigned by the store.
type NewProperty struct {
	Title       string
	Description string
	City        string
	Address     string
	Price       float64
	Surface     float64
	Rooms       int
	Type        PropertyType
}

// Patch is a validated partial update. A nil field means "leave unchanged".
type Patch struct {
	Title       *string
	Description *string
	City        *string
	Address     *string
	Price       *float64
	Surface     *float64
	Rooms       *int
	Type        *PropertyType
}

// Apply merges the patch over p and stamps UpdatedAt. ID and CreatedAt are untouched.
func (pt Patch) Apply(p *Property, now time.Time) {
	if pt.Title != nil {
		p.Title = *pt.Title
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.City != nil {
		p.City = *pt.City
	}
	if pt.Address != nil {
		p.Address = *pt.Address
	}
	if pt.Price != nil {
		p.Price = *pt.Price
	}
	if pt.Surface != nil {
		p.Surface = *pt.Surface
	}
	if pt.Rooms != nil {
		p.Rooms = *pt.Rooms
	}
	if pt.Type != nil {
		p.Type = *pt.Type
	}
	if now.Before(p.CreatedAt) {
		now = p.CreatedAt
	}
	p.UpdatedAt = now
}

// Build turns a creation payload into a record with the given identity.
func (n NewProperty) Build(id string, now time.Time) Property {
	return Property{
		ID:          id,
		Title:       n.Title,
		Description: n.Description,
		City:        n.City,
		Address:     n.Address,
		Price:       n.Price,
		Surface:     n.Surface,
		Rooms:       n.Rooms,
		Type:        n.Type,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
