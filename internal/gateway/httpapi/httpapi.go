// Package httpapi implements the web dashboard and HTTP API gateway for
// Keysage.
//
// Security:
//   - API key authentication on every /v1 request (constant-time comparison)
//   - Open local mode when no API keys are configured
//   - Request body size limits (default 1 MB)
//   - Per-user rate limiting via token bucket
//   - All requests logged with correlation IDs
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"

	"github.com/jkaninda/okapi"

	"github.com/mwenda/keysage/internal/assistant"
	"github.com/mwenda/keysage/internal/format"
	"github.com/mwenda/keysage/internal/observability"
	"github.com/mwenda/keysage/internal/ratelimit"
	"github.com/mwenda/keysage/internal/secrets"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

const localUserID = "local"

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	EnableDocs     bool
	APIKeys        map[string]string // API key → user ID mapping. Empty = open local mode.
	MaxRequestSize int64             // Maximum request body in bytes. 0 = 1 MB default.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz endpoint.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// secretService is the slice of the secrets façade the dashboard uses
// for the browser and analytics tabs.
type secretService interface {
	ListSecrets(ctx context.Context) ([]secrets.Summary, error)
	GetSecretValue(ctx context.Context, path string) (*secrets.Value, error)
	CountByType(ctx context.Context) (secrets.TypeCounts, error)
	SearchSecrets(ctx context.Context, pathPrefix string, typeFilter secrets.Type) ([]secrets.Summary, error)
}

// Gateway is the HTTP API gateway serving the dashboard and JSON API.
type Gateway struct {
	config    Config
	assistant assistant.Assistant
	service   secretService
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	server    *http.Server

	// Streaming support.
	sseEnabled bool // Enable SSE streaming chat endpoint.

	okapi *okapi.Okapi
	group *okapi.Group
}

// NewGateway creates an HTTP API gateway.
func NewGateway(cfg Config, a assistant.Assistant, svc secretService, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:    cfg,
		assistant: a,
		service:   svc,
		limiter:   rl,
		logger:    logger,
		okapi:     okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

// WithOpenAPIDocs enables interactive API documentation.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Keysage",
			Version: "v0.1.0",
		},
	)
	return g
}

// WithSSE enables the SSE streaming chat endpoint.
func (g *Gateway) WithSSE(enabled bool) *Gateway {
	g.sseEnabled = enabled
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Dashboard (unauthenticated; the API it calls is not).
	g.okapi.HandleStd("GET", "/", dashboardHandler().ServeHTTP)

	// Authenticated /v1 group.
	g.group = g.okapi.Group("/v1", g.authenticate)

	g.group.Post("/chat", g.handleChat,
		okapi.DocSummary("Send a natural-language message to the assistant"),
		okapi.DocTags("Chat"),
		okapi.DocRequestBody(ChatRequest{}),
		okapi.DocResponse(ChatResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
	)

	if g.sseEnabled {
		g.group.Post("/chat/stream", g.handleChatStream,
			okapi.DocSummary("Stream a chat reply via SSE"),
			okapi.DocTags("Chat"),
			okapi.DocRequestBody(ChatRequest{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
			okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		)
	}

	g.group.Get("/secrets", g.handleSecretsList,
		okapi.DocSummary("List or search secrets (values masked)"),
		okapi.DocTags("Secrets"),
		okapi.DocResponse(SecretsResponse{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)
	g.group.Post("/secrets/value", g.handleSecretValue,
		okapi.DocSummary("Retrieve one secret's value"),
		okapi.DocTags("Secrets"),
		okapi.DocRequestBody(SecretValueRequest{}),
		okapi.DocResponse(SecretValueResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/analytics", g.handleAnalytics,
		okapi.DocSummary("Secret counts by type"),
		okapi.DocTags("Analytics"),
		okapi.DocResponse(AnalyticsResponse{}),
	)

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Chat ---

// ChatRequest is the JSON body for POST /v1/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"` // Empty = new session.
}

// ChatResponse is the JSON response for POST /v1/chat.
type ChatResponse struct {
	Message       string `json:"message"`
	Intent        string `json:"intent"`
	SessionID     string `json:"session_id"`
	CorrelationID string `json:"correlation_id"`
}

func (g *Gateway) handleChat(c *okapi.Context) error {
	userID := c.GetString("userID")

	if g.limiter != nil {
		if err := g.limiter.Allow(userID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("message is required")
	}
	if req.Message == "" {
		return c.AbortBadRequest("message is required")
	}

	correlationID := newCorrelationID()

	// Resolve session ID: use client-provided or generate new.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	g.logger.Info("http chat",
		slog.String("user_id", userID),
		slog.String("correlation_id", correlationID),
		slog.String("session_id", sessionID),
	)

	turn, err := g.assistant.Process(c.Context(), &assistant.Input{
		SessionID:     sessionID,
		UserID:        userID,
		Message:       req.Message,
		CorrelationID: correlationID,
	})
	if err != nil {
		g.logger.Error("assistant processing failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("processing failed")
	}

	if g.config.Metrics != nil {
		g.config.Metrics.IntentClassificationsTotal.WithLabelValues(string(turn.Intent)).Inc()
	}

	return c.OK(ChatResponse{
		Message:       turn.Message,
		Intent:        string(turn.Intent),
		SessionID:     sessionID,
		CorrelationID: correlationID,
	})
}

// --- Secrets browser ---

// SecretSummary is one masked inventory entry.
type SecretSummary struct {
	Path  string `json:"path"`
	Type  string `json:"type"`
	Value string `json:"value"` // Always masked in listings.
}

// SecretsResponse is the JSON response for GET /v1/secrets.
type SecretsResponse struct {
	Secrets []SecretSummary `json:"secrets"`
	Count   int             `json:"count"`
}

func (g *Gateway) handleSecretsList(c *okapi.Context) error {
	userID := c.GetString("userID")
	if g.limiter != nil {
		if err := g.limiter.Allow(userID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	query := c.Request().URL.Query()
	prefix := query.Get("prefix")
	typeFilter := secrets.Type(query.Get("type"))

	summaries, err := g.service.SearchSecrets(c.Context(), prefix, typeFilter)
	g.recordSecretOp("search_secrets", err)
	if err != nil {
		return secretError(c, err)
	}

	resp := SecretsResponse{Secrets: make([]SecretSummary, len(summaries)), Count: len(summaries)}
	for i, s := range summaries {
		resp.Secrets[i] = SecretSummary{Path: s.Path, Type: string(s.Type), Value: format.Mask}
	}
	return c.OK(resp)
}

// SecretValueRequest is the JSON body for POST /v1/secrets/value.
type SecretValueRequest struct {
	Path string `json:"path"`
}

// SecretValueResponse is the JSON response for POST /v1/secrets/value.
type SecretValueResponse struct {
	Path   string            `json:"path"`
	Type   string            `json:"type"`
	Value  string            `json:"value"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (g *Gateway) handleSecretValue(c *okapi.Context) error {
	userID := c.GetString("userID")
	if g.limiter != nil {
		if err := g.limiter.Allow(userID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	var req SecretValueRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("path is required")
	}
	if req.Path == "" {
		return c.AbortBadRequest("path is required")
	}

	g.logger.Info("http secret value request",
		slog.String("user_id", userID),
		slog.String("path", req.Path),
	)

	value, err := g.service.GetSecretValue(c.Context(), req.Path)
	g.recordSecretOp("get_secret_value", err)
	if err != nil {
		return secretError(c, err)
	}

	return c.OK(SecretValueResponse{
		Path:   value.Path,
		Type:   string(value.Type),
		Value:  value.Plain,
		Fields: value.Fields,
	})
}

// --- Analytics ---

// AnalyticsResponse is the JSON response for GET /v1/analytics.
type AnalyticsResponse struct {
	Total   int `json:"total"`
	Static  int `json:"static"`
	Rotated int `json:"rotated"`
	Dynamic int `json:"dynamic"`
	Other   int `json:"other"`
}

func (g *Gateway) handleAnalytics(c *okapi.Context) error {
	userID := c.GetString("userID")
	if g.limiter != nil {
		if err := g.limiter.Allow(userID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	counts, err := g.service.CountByType(c.Context())
	g.recordSecretOp("count_by_type", err)
	if err != nil {
		return secretError(c, err)
	}

	return c.OK(AnalyticsResponse{
		Total:   counts.Total(),
		Static:  counts.Static,
		Rotated: counts.Rotated,
		Dynamic: counts.Dynamic,
		Other:   counts.Other,
	})
}

// --- Health ---

// HealthResponse is the JSON response for health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication ---

// authenticate validates the API key and stores the mapped user ID on the
// context. When no API keys are configured, the gateway runs in open
// local mode.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		if len(g.config.APIKeys) == 0 {
			c.Set("userID", localUserID)
			return next(c)
		}

		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		userID := ""
		for key, mapped := range g.config.APIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
				userID = mapped
			}
		}
		if userID == "" {
			return c.AbortUnauthorized("invalid API key")
		}
		c.Set("userID", userID)
		return next(c)
	}
}

// --- Helpers ---

// recordSecretOp counts one façade operation by outcome.
func (g *Gateway) recordSecretOp(operation string, err error) {
	if g.config.Metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	g.config.Metrics.SecretOperationsTotal.WithLabelValues(operation, status).Inc()
}

// secretError maps façade errors to appropriate HTTP responses.
func secretError(c *okapi.Context, err error) error {
	switch {
	case errors.Is(err, secrets.ErrNotFound):
		return c.JSON(http.StatusNotFound, okapi.M{"error": "secret not found"})
	case errors.Is(err, secrets.ErrAccessDenied):
		return c.JSON(http.StatusForbidden, okapi.M{"error": "access denied"})
	case errors.Is(err, secrets.ErrTimeout):
		return c.JSON(http.StatusGatewayTimeout, okapi.M{"error": "upstream timeout"})
	case errors.Is(err, secrets.ErrUpstreamUnavailable):
		return c.JSON(http.StatusBadGateway, okapi.M{"error": "upstream unavailable"})
	default:
		return c.AbortInternalServerError("secret operation failed")
	}
}

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
