// Package id provides tab identifiers.
//
// Tab ids are canonical lower-case UUID strings. They persist across launches
// and double as the screenshot key in the asset store, so anything used as an
// id must also be safe as a file name.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// legacyNamespace seeds name-based ids for legacy tabs whose id is not a UUID.
var legacyNamespace = uuid.MustParse("6f1b3c1e-7c2a-4f57-9a43-1f0f7d2f3b5a")

// New generates a fresh tab id
func New() string {
	return uuid.NewString()
}

// Normalize returns the canonical form of a UUID id
func Normalize(raw string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// FromLegacy maps a legacy tab id into the current id scheme.
// UUIDs keep their value; anything else maps to a stable name-based UUID so
// repeated migrations of the same input produce the same id.
func FromLegacy(raw string) string {
	if canonical, ok := Normalize(raw); ok {
		return canonical
	}
	return uuid.NewSHA1(legacyNamespace, []byte(raw)).String()
}

// IsValidKey reports whether key can be used as an asset key.
// Only ASCII letters, digits, '-' and '_' are accepted.
func IsValidKey(key string) bool {
	if key == "" || len(key) > 128 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
