package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

var created = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func base() Property {
	return Property{
		ID: "id-1", Title: "Flat", Description: "A flat in town", City: "Paris",
		Address: "1 rue X", Price: 1000, Surface: 30, Rooms: 2, Type: TypeRent,
		CreatedAt: created, UpdatedAt: created,
	}
}

func TestPatchApply(t *testing.T) {
	p := base()
	Patch{City: ptr("Lyon"), Rooms: ptr(3), Type: ptr(TypeSale)}.Apply(&p, created.Add(time.Hour))

	want := base()
	want.City = "Lyon"
	want.Rooms = 3
	want.Type = TypeSale
	want.UpdatedAt = created.Add(time.Hour)
	assert.Equal(t, want, p)
}

func TestPatchApply_EmptyOnlyTouchesUpdatedAt(t *testing.T) {
	p := base()
	Patch{}.Apply(&p, created.Add(time.Second))

	want := base()
	want.UpdatedAt = created.Add(time.Second)
	assert.Equal(t, want, p)
}

func TestNewPropertyBuild(t *testing.T) {
	n := NewProperty{Title: "House", City: "Nice", Price: 5, Rooms: 4, Type: TypeSale}
	p := n.Build("abc", created)
	assert.Equal(t, "abc", p.ID)
	assert.Equal(t, created, p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.Equal(t, 4, p.Rooms)
}

func TestPropertyTypeValid(t *testing.T) {
	assert.True(t, TypeSale.Valid())
	assert.True(t, TypeRent.Valid())
	assert.False(t, PropertyType("Sale").Valid())
	assert.False(t, PropertyType("").Valid())
}

func TestFilter(t *testing.T) {
	paris := base()
	paris.City = "Paris"
	paris.Type = TypeSale
	paris.Price = 300000
	lyon := base()
	lyon.ID = "id-2"
	lyon.City = "Lyon"

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty", Filter{}, []string{"id-1", "id-2"}},
		{"city substring any case", Filter{City: "pAr"}, []string{"id-1"}},
		{"city and range", Filter{City: "par", MinPrice: ptr(100000.0), MaxPrice: ptr(400000.0)}, []string{"id-1"}},
		{"range bounds inclusive", Filter{MinPrice: ptr(1000.0), MaxPrice: ptr(1000.0)}, []string{"id-2"}},
		{"no match", Filter{City: "Lyon", Type: TypeSale}, []string{}},
		{"type", Filter{Type: TypeRent}, []string{"id-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply([]Property{paris, lyon})
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	assert.True(t, Filter{}.IsEmpty())
	assert.False(t, Filter{MaxPrice: ptr(1.0)}.IsEmpty())
}

func TestNormalizeID(t *testing.T) {
	id, ok := NormalizeID("3F8B2C1E-6A4D-4B7E-9C2A-1D5E8F0A7B31")
	assert.True(t, ok)
	assert.Equal(t, "3f8b2c1e-6a4d-4b7e-9c2a-1d5e8f0a7b31", id)

	for _, bad := range []string{"", "1", "3f8b2c1e6a4d4b7e9c2a1d5e8f0a7b31", "{3f8b2c1e-6a4d-4b7e-9c2a-1d5e8f0a7b31}"} {
		_, ok := NormalizeID(bad)
		assert.False(t, ok, bad)
	}
}
