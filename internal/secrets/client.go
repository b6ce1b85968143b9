package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultGatewayURL = "https://api.akeyless.io"

// retryBaseDelay is the first backoff step; each retry doubles it.
const retryBaseDelay = 500 * time.Millisecond

// Client is a low-level Akeyless REST API client. Authentication happens
// per operation: each call obtains a fresh short-lived token with the
// configured access-id/access-key pair, so no token state is held between
// calls.
type Client struct {
	accessID   string
	accessKey  string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithGatewayURL overrides the Akeyless gateway base URL.
func WithGatewayURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxRetries sets the retry count for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// NewClient creates an Akeyless client for the given access credentials.
func NewClient(accessID, accessKey string, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		accessID:   accessID,
		accessKey:  accessKey,
		baseURL:    defaultGatewayURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxRetries: 2,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Item is one inventory entry as reported by the gateway.
type Item struct {
	Name         string   `json:"item_name"`
	Type         string   `json:"item_type"`
	ModifiedDate string   `json:"modification_date,omitempty"` // RFC 3339, optional.
	Tags         []string `json:"item_tags,omitempty"`
}

type listItemsResponse struct {
	Items []Item `json:"items"`
}

// ListItems returns the inventory under path. An empty itemType lists
// every type.
func (c *Client) ListItems(ctx context.Context, path string, itemType Type) ([]Item, error) {
	token, err := c.auth(ctx)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"token": token, "path": path}
	if itemType != "" {
		body["type"] = []string{upstreamTypeName(itemType)}
	}

	data, err := c.doPost(ctx, "/list-items", body)
	if err != nil {
		return nil, err
	}
	var resp listItemsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing list-items response: %w", err)
	}
	c.logger.DebugContext(ctx, "listed items",
		slog.String("path", path),
		slog.Int("count", len(resp.Items)))
	return resp.Items, nil
}

// DescribeItem returns metadata for one secret.
func (c *Client) DescribeItem(ctx context.Context, name string) (*Item, error) {
	token, err := c.auth(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.doPost(ctx, "/describe-item", map[string]any{"token": token, "name": name})
	if err != nil {
		return nil, err
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("parsing describe-item response: %w", err)
	}
	return &item, nil
}

// GetStaticSecret fetches a static secret value. The returned string is
// the raw stored value, which may itself be a JSON document.
func (c *Client) GetStaticSecret(ctx context.Context, name string) (string, error) {
	token, err := c.auth(ctx)
	if err != nil {
		return "", err
	}
	data, err := c.doPost(ctx, "/get-secret-value", map[string]any{
		"token": token,
		"names": []string{name},
	})
	if err != nil {
		return "", err
	}
	// Response is a map keyed by secret name.
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parsing get-secret-value response: %w", err)
	}
	raw, ok := resp[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return rawToString(raw), nil
}

// GetRotatedSecret fetches the current value of a rotated secret.
func (c *Client) GetRotatedSecret(ctx context.Context, name string) (string, error) {
	token, err := c.auth(ctx)
	if err != nil {
		return "", err
	}
	data, err := c.doPost(ctx, "/get-rotated-secret-value", map[string]any{
		"token": token,
		"names": []string{name},
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parsing get-rotated-secret-value response: %w", err)
	}
	if len(resp.Value) == 0 {
		return rawToString(data), nil
	}
	return rawToString(resp.Value), nil
}

// GetDynamicSecret produces ephemeral credentials from a dynamic secret.
func (c *Client) GetDynamicSecret(ctx context.Context, name string) (string, error) {
	token, err := c.auth(ctx)
	if err != nil {
		return "", err
	}
	data, err := c.doPost(ctx, "/get-dynamic-secret-value", map[string]any{
		"token": token,
		"name":  name,
	})
	if err != nil {
		return "", err
	}
	return rawToString(data), nil
}

type authResponse struct {
	Token string `json:"token"`
}

func (c *Client) auth(ctx context.Context) (string, error) {
	data, err := c.doPost(ctx, "/auth", map[string]any{
		"access-id":  c.accessID,
		"access-key": c.accessKey,
	})
	if err != nil {
		return "", fmt.Errorf("authenticating with akeyless: %w", err)
	}
	var resp authResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parsing auth response: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("auth response missing token: %w", ErrAccessDenied)
	}
	return resp.Token, nil
}

// doPost sends one JSON POST and returns the response body. Transient
// failures (network errors, 429, 5xx) are retried with exponential
// backoff up to maxRetries; auth and not-found errors fail immediately.
func (c *Client) doPost(ctx context.Context, endpoint string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			c.logger.DebugContext(ctx, "retrying akeyless request",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, mapContextErr(ctx.Err())
			case <-time.After(delay):
			}
		}

		data, retryable, err := c.doOnce(ctx, endpoint, payload)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint string, payload []byte) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, true, fmt.Errorf("akeyless %s: %w", endpoint, ErrTimeout)
		}
		return nil, true, fmt.Errorf("akeyless %s: %v: %w", endpoint, err, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("akeyless %s: %w", endpoint, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, fmt.Errorf("akeyless %s: status %d: %w", endpoint, resp.StatusCode, ErrAccessDenied)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("akeyless %s: status %d: %s: %w",
			endpoint, resp.StatusCode, truncateBody(data), ErrUpstreamUnavailable)
	default:
		return nil, false, fmt.Errorf("akeyless %s: status %d: %s: %w",
			endpoint, resp.StatusCode, truncateBody(data), ErrUpstreamUnavailable)
	}
}

func mapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, ErrTimeout)
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// upstreamTypeName maps a normalized Type back to the gateway's item type.
func upstreamTypeName(t Type) string {
	switch t {
	case TypeStatic:
		return "STATIC_SECRET"
	case TypeRotated:
		return "ROTATED_SECRET"
	case TypeDynamic:
		return "DYNAMIC_SECRET"
	default:
		return string(t)
	}
}

// rawToString renders a raw JSON value: strings unquoted, everything
// else as compact JSON.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}

func truncateBody(data []byte) string {
	const max = 200
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
