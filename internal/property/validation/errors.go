package validation

import (
	"strings"

	"github.com/Abdurahmanit/property-service/internal/property/domain"
)

// FieldError is one violated constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error reports every violated constraint of a payload, in field order.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return domain.ErrInvalidProperty.Error() + ": " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error { return domain.ErrInvalidProperty }

var messages = map[string]map[string]string{
	"title": {
		"min_u16": "title must be at least 3 characters",
		"max_u16": "title must be at most 100 characters",
	},
	"description": {"min_u16": "description must be at least 10 characters"},
	"city":        {"min_u16": "city must be at least 2 characters"},
	"address":     {"min_u16": "address must be at least 5 characters"},
	"price":       {"gt": "price must be positive"},
	"surface":     {"gt": "surface must be positive"},
	"rooms": {
		"gt":      "rooms must be a positive integer",
		"integer": "rooms must be a positive integer",
		"lte":     "rooms must be at most 2147483647",
	},
	"type": {"oneof": "type must be 'sale' or 'rent'"},
}

func message(field, tag string) string {
	if tag == "required" {
		return field + " is required"
	}
	if msg, ok := messages[field][tag]; ok {
		return msg
	}
	return field + " is invalid"
}
