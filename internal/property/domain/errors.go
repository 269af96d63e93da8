package domain

import "errors"

var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrDuplicateID      = errors.New("property id already exists")
	ErrInvalidProperty  = errors.New("invalid property data")
)
