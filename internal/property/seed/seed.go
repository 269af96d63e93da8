// Package seed turns the bootstrap dataset into store records.
//
// Bootstrap data is trusted more than live writes: an unknown listing type
// falls back to sale instead of being rejected, and missing timestamps
// default to the load time. Records are not re-validated against the
// create rules.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"github.com/google/uuid"
)

//go:embed properties.json
var defaultFixture []byte

// record is the loose on-disk shape; every field is optional.
type record struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	City        string     `json:"city"`
	Address     string     `json:"address"`
	Price       float64    `json:"price"`
	Surface     float64    `json:"surface"`
	Rooms       float64    `json:"rooms"`
	Type        any        `json:"type"`
	CreatedAt   *time.Time `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// Report summarizes the normalization applied while loading.
type Report struct {
	Read        int
	Loaded      int
	CoercedType int
	Reassigned  int
	Duplicates  int
}

// LoadFile reads a seed file; an empty path selects the embedded fixture.
func LoadFile(path string, now time.Time) ([]domain.Property, Report, error) {
	if path == "" {
		return Parse(defaultFixture, now)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, now)
}

func Load(r io.Reader, now time.Time) ([]domain.Property, Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Report{}, fmt.Errorf("seed: read: %w", err)
	}
	return Parse(data, now)
}

// Parse normalizes a JSON array of records. Records keep their input order.
// Ids that are not UUID-shaped are replaced, since the HTTP routes reject
// them, and the rest are lowercased. A repeated id keeps its first occurrence.
func Parse(data []byte, now time.Time) ([]domain.Property, Report, error) {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, Report{}, fmt.Errorf("seed: decode: %w", err)
	}

	rep := Report{Read: len(recs)}
	seen := make(map[string]struct{}, len(recs))
	out := make([]domain.Property, 0, len(recs))
	for _, rec := range recs {
		id, ok := domain.NormalizeID(rec.ID)
		if !ok {
			id = uuid.NewString()
			rep.Reassigned++
		}
		if _, dup := seen[id]; dup {
			rep.Duplicates++
			continue
		}
		seen[id] = struct{}{}

		raw, _ := rec.Type.(string)
		typ := domain.PropertyType(raw)
		if !typ.Valid() {
			typ = domain.TypeSale
			rep.CoercedType++
		}

		p := domain.Property{
			ID:          id,
			Title:       rec.Title,
			Description: rec.Description,
			City:        rec.City,
			Address:     rec.Address,
			Price:       rec.Price,
			Surface:     rec.Surface,
			Rooms:       int(rec.Rooms),
			Type:        typ,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if rec.CreatedAt != nil {
			p.CreatedAt = *rec.CreatedAt
		}
		if rec.UpdatedAt != nil {
			p.UpdatedAt = *rec.UpdatedAt
		}
		if p.UpdatedAt.Before(p.CreatedAt) {
			p.UpdatedAt = p.CreatedAt
		}
		out = append(out, p)
	}
	rep.Loaded = len(out)
	return out, rep, nil
}
