package domain

import (
	"strings"

	"github.com/google/uuid"
)

// NormalizeID reports whether s is a hyphenated UUID in either case and
// returns its lowercase form. Stored ids are always lowercase.
func NormalizeID(s string) (string, bool) {
	if len(s) != 36 {
		return "", false
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", false
	}
	return strings.ToLower(s), true
}
