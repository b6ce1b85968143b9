package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mwenda/keysage/internal/llm"
	"github.com/mwenda/keysage/internal/secrets"
)

// --- InstrumentedProvider ---

// InstrumentedProvider wraps an llm.Provider with metrics and tracing.
type InstrumentedProvider struct {
	inner   llm.Provider
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedProvider wraps an LLM provider with observability.
func NewInstrumentedProvider(inner llm.Provider, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedProvider {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedProvider{
		inner:   inner,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (p *InstrumentedProvider) Name() string { return p.inner.Name() }

func (p *InstrumentedProvider) SendMessage(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	provider := p.inner.Name()

	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.Start(ctx, "llm.send_message",
			trace.WithAttributes(
				attribute.String("llm.provider", provider),
			))
		defer span.End()
	}

	start := time.Now()
	resp, err := p.inner.SendMessage(ctx, req)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		if p.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	if p.metrics != nil {
		p.metrics.LLMRequestsTotal.WithLabelValues(provider, "", status).Inc()
		p.metrics.LLMRequestDuration.WithLabelValues(provider, "").Observe(duration)

		if resp != nil {
			p.metrics.LLMTokensUsed.WithLabelValues(provider, "", "input").Add(float64(resp.Usage.InputTokens))
			p.metrics.LLMTokensUsed.WithLabelValues(provider, "", "output").Add(float64(resp.Usage.OutputTokens))
		}
	}

	return resp, err
}

// --- InstrumentedSecretClient ---

// InstrumentedSecretClient wraps a secrets.APIClient with per-operation
// metrics and tracing for Akeyless calls.
type InstrumentedSecretClient struct {
	inner   secrets.APIClient
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedSecretClient wraps an Akeyless client with observability.
func NewInstrumentedSecretClient(inner secrets.APIClient, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedSecretClient {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedSecretClient{
		inner:   inner,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (c *InstrumentedSecretClient) ListItems(ctx context.Context, path string, itemType secrets.Type) ([]secrets.Item, error) {
	var items []secrets.Item
	err := c.observe(ctx, "list_items", func(ctx context.Context) error {
		var err error
		items, err = c.inner.ListItems(ctx, path, itemType)
		return err
	})
	return items, err
}

func (c *InstrumentedSecretClient) DescribeItem(ctx context.Context, name string) (*secrets.Item, error) {
	var item *secrets.Item
	err := c.observe(ctx, "describe_item", func(ctx context.Context) error {
		var err error
		item, err = c.inner.DescribeItem(ctx, name)
		return err
	})
	return item, err
}

func (c *InstrumentedSecretClient) GetStaticSecret(ctx context.Context, name string) (string, error) {
	var value string
	err := c.observe(ctx, "get_static_secret", func(ctx context.Context) error {
		var err error
		value, err = c.inner.GetStaticSecret(ctx, name)
		return err
	})
	return value, err
}

func (c *InstrumentedSecretClient) GetRotatedSecret(ctx context.Context, name string) (string, error) {
	var value string
	err := c.observe(ctx, "get_rotated_secret", func(ctx context.Context) error {
		var err error
		value, err = c.inner.GetRotatedSecret(ctx, name)
		return err
	})
	return value, err
}

func (c *InstrumentedSecretClient) GetDynamicSecret(ctx context.Context, name string) (string, error) {
	var value string
	err := c.observe(ctx, "get_dynamic_secret", func(ctx context.Context) error {
		var err error
		value, err = c.inner.GetDynamicSecret(ctx, name)
		return err
	})
	return value, err
}

func (c *InstrumentedSecretClient) observe(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "akeyless."+operation)
		defer span.End()
	}

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		if c.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	if c.metrics != nil {
		c.metrics.AkeylessRequestsTotal.WithLabelValues(operation, status).Inc()
		c.metrics.AkeylessRequestDuration.WithLabelValues(operation).Observe(duration)
	}

	return err
}

// --- Compile-time interface checks ---

var (
	_ llm.Provider      = (*InstrumentedProvider)(nil)
	_ secrets.APIClient = (*InstrumentedSecretClient)(nil)
)

// statusCode returns the HTTP status code as a string for metric labels.
func statusCode(code int) string {
	return strconv.Itoa(code)
}
