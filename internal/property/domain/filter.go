package domain

import "strings"

// Filter holds optional search criteria. Nil or empty fields impose no
// constraint; everything supplied is combined with AND.
type Filter struct {
	City     string
	Type     PropertyType
	MinPrice *float64
	MaxPrice *float64
}

// IsEmpty reports whether no criterion is set.
func (f Filter) IsEmpty() bool {
	return f.City == "" && f.Type == "" && f.MinPrice == nil && f.MaxPrice == nil
}

// Matches reports whether p satisfies every supplied criterion.
// City is a case-insensitive substring match.
func (f Filter) Matches(p Property) bool {
	if f.City != "" && !strings.Contains(strings.ToLower(p.City), strings.ToLower(f.City)) {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}

// Apply returns the matching subset of props, preserving order.
func (f Filter) Apply(props []Property) []Property {
	out := make([]Property, 0, len(props))
	for _, p := range props {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}
