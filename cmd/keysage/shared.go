package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mwenda/keysage/internal/assistant"
	"github.com/mwenda/keysage/internal/config"
	"github.com/mwenda/keysage/internal/intent"
	"github.com/mwenda/keysage/internal/llm"
	"github.com/mwenda/keysage/internal/llm/gemini"
	"github.com/mwenda/keysage/internal/observability"
	"github.com/mwenda/keysage/internal/secrets"
)

// SharedComponents holds all initialized subsystems that both the chat and
// serve modes require. Built once by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config *config.Config
	Logger *slog.Logger

	Obs          *observability.Observability
	Provider     llm.Provider
	SecretClient secrets.APIClient
	Facade       *secrets.Facade
	Classifier   *intent.Classifier
	Sessions     *assistant.SessionStore
	Pipeline     *assistant.Pipeline

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared performs all common initialization shared between chat and serve modes.
// Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
		)
	}

	// Gemini classifier backend.
	geminiOpts := []gemini.Option{
		gemini.WithHTTPClient(&http.Client{Timeout: cfg.Gemini.Timeout()}),
	}
	if cfg.Gemini.BaseURL != "" {
		geminiOpts = append(geminiOpts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
	}
	var provider llm.Provider = gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.ModelName(), logger, geminiOpts...)
	if obs != nil && obs.Metrics != nil {
		provider = observability.NewInstrumentedProvider(provider, obs.Metrics, obs.TracerOrNil())
	}
	sc.Provider = provider
	logger.Debug("llm provider initialized",
		slog.String("provider", provider.Name()),
		slog.String("model", cfg.Gemini.ModelName()),
	)

	// Akeyless client.
	var secretClient secrets.APIClient = secrets.NewClient(
		cfg.Akeyless.AccessID,
		cfg.Akeyless.AccessKey,
		logger,
		secrets.WithGatewayURL(cfg.Akeyless.ResolvedGatewayURL()),
		secrets.WithHTTPClient(&http.Client{Timeout: cfg.Akeyless.Timeout()}),
		secrets.WithMaxRetries(cfg.Akeyless.Retries()),
	)
	if obs != nil && obs.Metrics != nil {
		secretClient = observability.NewInstrumentedSecretClient(secretClient, obs.Metrics, obs.TracerOrNil())
	}
	sc.SecretClient = secretClient
	logger.Debug("akeyless client initialized",
		slog.String("gateway_url", cfg.Akeyless.ResolvedGatewayURL()),
	)

	sc.Facade = secrets.NewFacade(secretClient, logger)
	sc.Classifier = intent.NewClassifier(provider, logger)
	sc.Sessions = assistant.NewSessionStore()
	sc.Pipeline = assistant.NewPipeline(sc.Classifier, sc.Facade, sc.Sessions, logger)

	// Health checks.
	if obs != nil && obs.Health != nil {
		obs.Health.AddCheck("akeyless", func(ctx context.Context) error {
			_, err := sc.Facade.ListSecrets(ctx)
			return err
		})
	}

	return sc, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
