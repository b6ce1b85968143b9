package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// APIClient is the slice of the Akeyless client the façade consumes.
// *Client satisfies it; tests substitute fakes.
type APIClient interface {
	ListItems(ctx context.Context, path string, itemType Type) ([]Item, error)
	DescribeItem(ctx context.Context, name string) (*Item, error)
	GetStaticSecret(ctx context.Context, name string) (string, error)
	GetRotatedSecret(ctx context.Context, name string) (string, error)
	GetDynamicSecret(ctx context.Context, name string) (string, error)
}

var _ APIClient = (*Client)(nil)

// Facade exposes the read-only secret operations the assistant maps
// intents onto. All operations are strictly reads: nothing here can
// create, modify or delete a secret.
type Facade struct {
	client APIClient
	logger *slog.Logger
}

// NewFacade wraps an Akeyless client.
func NewFacade(client APIClient, logger *slog.Logger) *Facade {
	return &Facade{client: client, logger: logger}
}

// ListSecrets returns summaries for every secret in the vault, sorted
// by path.
func (f *Facade) ListSecrets(ctx context.Context) ([]Summary, error) {
	items, err := f.client.ListItems(ctx, "/", "")
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(items))
	for _, it := range items {
		s := Summary{Path: it.Name, Type: ParseType(it.Type), Tags: it.Tags}
		if it.ModifiedDate != "" {
			if ts, err := time.Parse(time.RFC3339, it.ModifiedDate); err == nil {
				s.ModifiedAt = ts
			}
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Path < summaries[j].Path })
	return summaries, nil
}

// GetSecretValue retrieves one secret's value. The item is described
// first so the fetch can be routed by type: static and rotated secrets
// read the stored value, dynamic secrets produce fresh credentials.
func (f *Facade) GetSecretValue(ctx context.Context, path string) (*Value, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty path: %w", ErrNotFound)
	}

	item, err := f.client.DescribeItem(ctx, path)
	if err != nil {
		return nil, err
	}
	typ := ParseType(item.Type)

	var plain string
	switch typ {
	case TypeRotated:
		plain, err = f.client.GetRotatedSecret(ctx, path)
	case TypeDynamic:
		plain, err = f.client.GetDynamicSecret(ctx, path)
	default:
		plain, err = f.client.GetStaticSecret(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "secret value retrieved",
		slog.String("path", path),
		slog.String("type", string(typ)))
	return &Value{
		Path:   path,
		Type:   typ,
		Plain:  plain,
		Fields: parseFields(plain),
	}, nil
}

// CountByType tallies the vault inventory per type. Every type appears
// in the result, zero-filled when no secrets of that type exist.
func (f *Facade) CountByType(ctx context.Context) (TypeCounts, error) {
	items, err := f.client.ListItems(ctx, "/", "")
	if err != nil {
		return TypeCounts{}, err
	}
	var counts TypeCounts
	for _, it := range items {
		switch ParseType(it.Type) {
		case TypeStatic:
			counts.Static++
		case TypeRotated:
			counts.Rotated++
		case TypeDynamic:
			counts.Dynamic++
		default:
			counts.Other++
		}
	}
	return counts, nil
}

// SearchSecrets filters the inventory by path prefix and/or type. Both
// filters are optional; filtering happens client-side over the full
// listing. An empty result is a valid outcome, not an error.
func (f *Facade) SearchSecrets(ctx context.Context, pathPrefix string, typeFilter Type) ([]Summary, error) {
	all, err := f.ListSecrets(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]Summary, 0, len(all))
	for _, s := range all {
		if pathPrefix != "" && !strings.HasPrefix(s.Path, pathPrefix) {
			continue
		}
		if typeFilter != "" && s.Type != typeFilter {
			continue
		}
		matches = append(matches, s)
	}
	return matches, nil
}

// parseFields extracts top-level keys when the stored value is a JSON
// object. Nested values are rendered as compact JSON.
func parseFields(plain string) map[string]string {
	trimmed := strings.TrimSpace(plain)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil || len(obj) == 0 {
		return nil
	}
	fields := make(map[string]string, len(obj))
	for k, raw := range obj {
		fields[k] = rawToString(raw)
	}
	return fields
}
