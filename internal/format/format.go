// Package format renders assistant results as plain text. Each intent has
// a fixed template; secret values are masked everywhere except the
// explicit get-secret rendering.
package format

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mwenda/keysage/internal/secrets"
)

// Mask replaces secret material in any listing that is not an explicit
// value retrieval.
const Mask = "••••••••"

// SecretList renders the full inventory. Values are never shown.
func SecretList(summaries []secrets.Summary) string {
	if len(summaries) == 0 {
		return "No secrets found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d secrets:\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(&b, "  %s  [%s]  value: %s\n", s.Path, s.Type, Mask)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SecretValue renders one retrieved value unmasked. This is the only
// template that exposes secret material, and only because the user
// explicitly asked for this secret.
func SecretValue(v *secrets.Value) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Secret %s [%s]:\n", v.Path, v.Type)
	if len(v.Fields) > 0 {
		keys := make([]string, 0, len(v.Fields))
		for k := range v.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, v.Fields[k])
		}
		return strings.TrimRight(b.String(), "\n")
	}
	fmt.Fprintf(&b, "  %s", v.Plain)
	return b.String()
}

// TypeCounts renders the per-type tally. Every type is always present,
// zeros included.
func TypeCounts(c secrets.TypeCounts) string {
	return fmt.Sprintf("You have %d secrets: %d static, %d rotated, %d dynamic, %d other.",
		c.Total(), c.Static, c.Rotated, c.Dynamic, c.Other)
}

var typeCountsPattern = regexp.MustCompile(
	`^You have \d+ secrets: (\d+) static, (\d+) rotated, (\d+) dynamic, (\d+) other\.$`)

// ParseTypeCounts inverts TypeCounts, recovering the tally from its
// rendered form.
func ParseTypeCounts(s string) (secrets.TypeCounts, error) {
	m := typeCountsPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return secrets.TypeCounts{}, fmt.Errorf("unrecognized type counts text: %q", s)
	}
	var c secrets.TypeCounts
	for i, dst := range []*int{&c.Static, &c.Rotated, &c.Dynamic, &c.Other} {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return secrets.TypeCounts{}, fmt.Errorf("parsing count %q: %w", m[i+1], err)
		}
		*dst = n
	}
	return c, nil
}

// SearchResults renders filtered matches, masked like a listing.
func SearchResults(pathPrefix string, typeFilter secrets.Type, matches []secrets.Summary) string {
	criteria := describeCriteria(pathPrefix, typeFilter)
	if len(matches) == 0 {
		return fmt.Sprintf("No secrets match %s.", criteria)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d secrets matching %s:\n", len(matches), criteria)
	for _, s := range matches {
		fmt.Fprintf(&b, "  %s  [%s]  value: %s\n", s.Path, s.Type, Mask)
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeCriteria(pathPrefix string, typeFilter secrets.Type) string {
	var parts []string
	if pathPrefix != "" {
		parts = append(parts, fmt.Sprintf("prefix %q", pathPrefix))
	}
	if typeFilter != "" {
		parts = append(parts, fmt.Sprintf("type %q", typeFilter))
	}
	if len(parts) == 0 {
		return "your search"
	}
	return strings.Join(parts, " and ")
}

// Clarification is the reply for requests that map to no known intent.
func Clarification() string {
	return "I can list secrets, fetch a secret's value, count secrets by type, or search by path prefix and type. What would you like to do?"
}

// Error renders an upstream or classification failure as a user-facing
// message.
func Error(err error) string {
	switch {
	case errors.Is(err, secrets.ErrNotFound):
		return "That secret does not exist. Check the path and try again."
	case errors.Is(err, secrets.ErrAccessDenied):
		return "Access denied: the configured credentials cannot read that secret."
	case errors.Is(err, secrets.ErrTimeout):
		return "The vault took too long to respond. Please try again."
	case errors.Is(err, secrets.ErrUpstreamUnavailable):
		return "The vault is currently unreachable. Please try again shortly."
	default:
		return "Sorry, I could not understand that request. Please try rephrasing."
	}
}

// MissingPath is the reply when a get-secret request names no secret.
func MissingPath() string {
	return "Which secret would you like? Please include its path, for example /prod/db-password."
}
