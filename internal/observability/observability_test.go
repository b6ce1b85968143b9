package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/mwenda/keysage/internal/config"
	"github.com/mwenda/keysage/internal/llm"
	"github.com/mwenda/keysage/internal/secrets"
)

// --- No-op Path ---

func TestNew_NilConfig(t *testing.T) {
	obs, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}
	if obs != nil {
		t.Fatal("expected nil Observability for nil config")
	}
}

func TestNew_AllDisabled(t *testing.T) {
	obs, err := New(&config.ObservabilityConfig{}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if obs == nil {
		t.Fatal("expected non-nil Observability")
	}
	if obs.Metrics != nil {
		t.Error("metrics should be nil when not enabled")
	}
	if obs.Tracer != nil {
		t.Error("tracer should be nil when not enabled")
	}
	if obs.Health == nil {
		t.Error("health checker should always be created")
	}
}

func TestObservability_ShutdownNil(t *testing.T) {
	// Should not panic.
	var obs *Observability
	obs.Shutdown(context.Background())
}

func TestTracerOrNil_Nil(t *testing.T) {
	var obs *Observability
	if obs.TracerOrNil() != nil {
		t.Error("expected nil tracer from nil Observability")
	}
}

// --- MetricsCollector ---

func TestMetricsCollector_Created(t *testing.T) {
	m := NewMetricsCollector()
	if m == nil {
		t.Fatal("expected non-nil MetricsCollector")
	}
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}

	// Initialize some metrics so they appear in Gather (CounterVec only appears after first use).
	m.LLMRequestsTotal.WithLabelValues("test", "", "success").Inc()
	m.AkeylessRequestsTotal.WithLabelValues("list_items", "success").Inc()
	m.IntentClassificationsTotal.WithLabelValues("list_secrets").Inc()
	m.HTTPRequestsTotal.WithLabelValues("GET", "/test", "200").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"keysage_llm_requests_total",
		"keysage_akeyless_requests_total",
		"keysage_intent_classifications_total",
		"keysage_http_requests_total",
	} {
		if !names[expected] {
			t.Errorf("metric %q not found in registry", expected)
		}
	}
}

func TestMetricsCollector_RecordAndGather(t *testing.T) {
	m := NewMetricsCollector()

	// Increment a counter.
	m.LLMRequestsTotal.WithLabelValues("gemini", "", "success").Inc()
	m.LLMRequestsTotal.WithLabelValues("gemini", "", "success").Inc()
	m.LLMRequestsTotal.WithLabelValues("gemini", "", "error").Inc()

	// Gather and verify.
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "keysage_llm_requests_total" {
			found = true
			for _, metric := range f.GetMetric() {
				labels := labelMap(metric.GetLabel())
				if labels["status"] == "success" {
					if got := metric.GetCounter().GetValue(); got != 2 {
						t.Errorf("success count = %v, want 2", got)
					}
				}
				if labels["status"] == "error" {
					if got := metric.GetCounter().GetValue(); got != 1 {
						t.Errorf("error count = %v, want 1", got)
					}
				}
			}
		}
	}
	if !found {
		t.Error("keysage_llm_requests_total not found")
	}
}

func labelMap(pairs []*dto.LabelPair) map[string]string {
	m := make(map[string]string)
	for _, p := range pairs {
		m[p.GetName()] = p.GetValue()
	}
	return m
}

// --- HealthChecker ---

func TestHealthChecker_NoChecks(t *testing.T) {
	h := NewHealthChecker(nil)
	status := h.CheckReady(context.Background())
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
}

func TestHealthChecker_AllPass(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddCheck("akeyless", func(ctx context.Context) error { return nil })
	h.AddCheck("gemini", func(ctx context.Context) error { return nil })

	status := h.CheckReady(context.Background())
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
	if status.Checks["akeyless"].Status != "ok" {
		t.Errorf("akeyless check = %q, want ok", status.Checks["akeyless"].Status)
	}
}

func TestHealthChecker_OneFails(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddCheck("akeyless", func(ctx context.Context) error { return errors.New("connection refused") })
	h.AddCheck("gemini", func(ctx context.Context) error { return nil })

	status := h.CheckReady(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if status.Checks["akeyless"].Status != "fail" {
		t.Errorf("akeyless check = %q, want fail", status.Checks["akeyless"].Status)
	}
	if status.Checks["gemini"].Status != "ok" {
		t.Errorf("gemini check = %q, want ok", status.Checks["gemini"].Status)
	}
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)
	status := h.CheckHealth()
	if status.Status != "ok" {
		t.Errorf("liveness status = %q, want ok", status.Status)
	}
}

// --- InstrumentedProvider (wrapper) ---

type mockProvider struct {
	name   string
	resp   *llm.Response
	err    error
	called int
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) SendMessage(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.called++
	return m.resp, m.err
}

func TestInstrumentedProvider_Success(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockProvider{
		name: "test",
		resp: &llm.Response{
			Content: "hello",
			Usage:   llm.Usage{InputTokens: 10, OutputTokens: 20},
		},
	}

	p := NewInstrumentedProvider(inner, metrics, nil)
	resp, err := p.SendMessage(context.Background(), &llm.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("content = %q, want hello", resp.Content)
	}
	if inner.called != 1 {
		t.Errorf("inner called %d times, want 1", inner.called)
	}

	// Verify metrics recorded.
	val := counterValue(t, metrics.Registry, "keysage_llm_requests_total", prometheus.Labels{"provider": "test", "model": "", "status": "success"})
	if val != 1 {
		t.Errorf("requests_total = %v, want 1", val)
	}
}

func TestInstrumentedProvider_Error(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockProvider{
		name: "test",
		err:  errors.New("api error"),
	}

	p := NewInstrumentedProvider(inner, metrics, nil)
	_, err := p.SendMessage(context.Background(), &llm.Request{})
	if err == nil {
		t.Fatal("expected error")
	}

	val := counterValue(t, metrics.Registry, "keysage_llm_requests_total", prometheus.Labels{"provider": "test", "model": "", "status": "error"})
	if val != 1 {
		t.Errorf("error requests_total = %v, want 1", val)
	}
}

func TestInstrumentedProvider_NilMetrics(t *testing.T) {
	inner := &mockProvider{
		name: "test",
		resp: &llm.Response{Content: "ok"},
	}

	// nil metrics — should not panic.
	p := NewInstrumentedProvider(inner, nil, nil)
	resp, err := p.SendMessage(context.Background(), &llm.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q, want ok", resp.Content)
	}
}

// --- InstrumentedSecretClient (wrapper) ---

type mockAPIClient struct {
	items []secrets.Item
	err   error
}

func (m *mockAPIClient) ListItems(ctx context.Context, path string, itemType secrets.Type) ([]secrets.Item, error) {
	return m.items, m.err
}
func (m *mockAPIClient) DescribeItem(ctx context.Context, name string) (*secrets.Item, error) {
	return nil, m.err
}
func (m *mockAPIClient) GetStaticSecret(ctx context.Context, name string) (string, error) {
	return "", m.err
}
func (m *mockAPIClient) GetRotatedSecret(ctx context.Context, name string) (string, error) {
	return "", m.err
}
func (m *mockAPIClient) GetDynamicSecret(ctx context.Context, name string) (string, error) {
	return "", m.err
}

func TestInstrumentedSecretClient_Success(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockAPIClient{items: []secrets.Item{{Name: "/prod/db", Type: "STATIC_SECRET"}}}

	c := NewInstrumentedSecretClient(inner, metrics, nil)
	items, err := c.ListItems(context.Background(), "/", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("items = %v", items)
	}

	val := counterValue(t, metrics.Registry, "keysage_akeyless_requests_total", prometheus.Labels{"operation": "list_items", "status": "success"})
	if val != 1 {
		t.Errorf("akeyless requests = %v, want 1", val)
	}
}

func TestInstrumentedSecretClient_Error(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockAPIClient{err: errors.New("gateway down")}

	c := NewInstrumentedSecretClient(inner, metrics, nil)
	if _, err := c.GetStaticSecret(context.Background(), "/prod/db"); err == nil {
		t.Fatal("expected error")
	}

	val := counterValue(t, metrics.Registry, "keysage_akeyless_requests_total", prometheus.Labels{"operation": "get_static_secret", "status": "error"})
	if val != 1 {
		t.Errorf("akeyless error requests = %v, want 1", val)
	}
}

// --- HTTP Middleware ---

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetricsCollector()

	handler := HTTPMetricsMiddleware(metrics, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	val := counterValue(t, metrics.Registry, "keysage_http_requests_total", prometheus.Labels{"method": "GET", "path": "/test", "status_code": "200"})
	if val != 1 {
		t.Errorf("http requests = %v, want 1", val)
	}
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	// Should not panic with nil metrics.
	handler := HTTPMetricsMiddleware(nil, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// --- Helpers ---

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			lm := labelMap(metric.GetLabel())
			match := true
			for k, v := range labels {
				if lm[k] != v {
					match = false
					break
				}
			}
			if match {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
