package mongodb

import (
	"time"

	"github.com/Abdurahmanit/property-service/internal/property/domain"
)

// propertyDocument is the stored shape. Seq preserves insertion order,
// which _id (a UUID string) cannot.
type propertyDocument struct {
	ID          string              `bson:"_id"`
	Seq         int64               `bson:"seq"`
	Title       string              `bson:"title"`
	Description string              `bson:"description"`
	City        string              `bson:"city"`
	Address     string              `bson:"address"`
	Price       float64             `bson:"price"`
	Surface     float64             `bson:"surface"`
	Rooms       int                 `bson:"rooms"`
	Type        domain.PropertyType `bson:"type"`
	CreatedAt   time.Time           `bson:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at"`
}

func toPropertyDocument(p domain.Property, seq int64) propertyDocument {
	return propertyDocument{
		ID:          p.ID,
		Seq:         seq,
		Title:       p.Title,
		Description: p.Description,
		City:        p.City,
		Address:     p.Address,
		Price:       p.Price,
		Surface:     p.Surface,
		Rooms:       p.Rooms,
		Type:        p.Type,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toDomainProperty(d propertyDocument) domain.Property {
	return domain.Property{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		City:        d.City,
		Address:     d.Address,
		Price:       d.Price,
		Surface:     d.Surface,
		Rooms:       d.Rooms,
		Type:        d.Type,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func toDomainProperties(docs []propertyDocument) []domain.Property {
	out := make([]domain.Property, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDomainProperty(d))
	}
	return out
}
