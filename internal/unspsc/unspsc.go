// Package unspsc normalizes and compares UNSPSC product/service codes.
// Codes are 8-digit strings; the first 4 digits identify the broad category
// used for approximate matching across the whole engine.
package unspsc

import (
	"strings"

	"github.com/mvargas/tender-scout/internal/models"
)

const categoryLen = 4

// Normalize strips the "V1." prefix SECOP attaches to category codes
// (e.g. V1.80111600 -> 80111600) and trims whitespace.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	return strings.TrimPrefix(code, "V1.")
}

// Category returns the 4-digit category prefix of a normalized code, or ""
// when the code is too short to carry one.
func Category(code string) string {
	code = Normalize(code)
	if len(code) < categoryLen {
		return ""
	}
	return code[:categoryLen]
}

// SameCategory reports whether two codes fall in the same 4-digit category.
// This is the single comparison primitive used by every scoring path. Codes
// shorter than 4 characters never match.
func SameCategory(a, b string) bool {
	ca, cb := Category(a), Category(b)
	return ca != "" && ca == cb
}

// FromListing extracts the normalized UNSPSC codes a listing declares.
// SECOP publishes a single principal category code per process; codes too
// short to carry a category are dropped.
func FromListing(t models.TenderListing) []string {
	var codes []string
	if code := Normalize(t.CategoryCode); len(code) >= categoryLen {
		codes = append(codes, code)
	}
	return codes
}
