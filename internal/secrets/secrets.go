// Package secrets provides read-only access to secrets stored in Akeyless:
// a low-level REST client and a façade exposing the operations the
// assistant needs.
package secrets

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors for upstream failures. Callers distinguish outcomes
// with errors.Is.
var (
	// ErrNotFound indicates the requested secret or path does not exist.
	ErrNotFound = errors.New("secret not found")

	// ErrAccessDenied indicates the credentials lack permission. Never
	// retried: a second identical attempt cannot succeed.
	ErrAccessDenied = errors.New("access denied")

	// ErrUpstreamUnavailable indicates the Akeyless gateway failed or is
	// unreachable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrTimeout indicates the request exceeded its deadline.
	ErrTimeout = errors.New("request timed out")
)

// Type categorizes a secret by how its value is managed.
type Type string

const (
	TypeStatic  Type = "static"
	TypeRotated Type = "rotated"
	TypeDynamic Type = "dynamic"
	TypeOther   Type = "other"
)

// Types lists all categories in display order.
func Types() []Type {
	return []Type{TypeStatic, TypeRotated, TypeDynamic, TypeOther}
}

// ParseType normalizes an upstream item type string. Akeyless reports
// values like "STATIC_SECRET", "ROTATED_SECRET" and "DYNAMIC_SECRET";
// anything unrecognized maps to TypeOther.
func ParseType(itemType string) Type {
	upper := strings.ToUpper(itemType)
	switch {
	case strings.Contains(upper, "STATIC"):
		return TypeStatic
	case strings.Contains(upper, "ROTATED"):
		return TypeRotated
	case strings.Contains(upper, "DYNAMIC"):
		return TypeDynamic
	default:
		return TypeOther
	}
}

// Summary describes a secret without exposing its value.
type Summary struct {
	Path       string
	Type       Type
	ModifiedAt time.Time // Zero when the gateway omits modification_date.
	Tags       []string
}

// Value is a retrieved secret value. Plain holds the raw value. When the
// stored value is itself a JSON object, Fields holds its top-level keys
// so formatters can label each part.
type Value struct {
	Path   string
	Type   Type
	Plain  string
	Fields map[string]string
}

// TypeCounts holds per-type secret totals. All types are always present,
// zero-filled when absent from the inventory.
type TypeCounts struct {
	Static  int
	Rotated int
	Dynamic int
	Other   int
}

// Total returns the sum across all types.
func (c TypeCounts) Total() int {
	return c.Static + c.Rotated + c.Dynamic + c.Other
}

// Count returns the tally for one type.
func (c TypeCounts) Count(t Type) int {
	switch t {
	case TypeStatic:
		return c.Static
	case TypeRotated:
		return c.Rotated
	case TypeDynamic:
		return c.Dynamic
	default:
		return c.Other
	}
}
