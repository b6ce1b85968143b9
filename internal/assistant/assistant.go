// Package assistant implements the conversational pipeline: classify the
// user's message, execute the matching secret operation, and render the
// result as text.
package assistant

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwenda/keysage/internal/format"
	"github.com/mwenda/keysage/internal/intent"
	"github.com/mwenda/keysage/internal/secrets"
)

// Input is one user message entering the pipeline.
type Input struct {
	SessionID     string
	UserID        string
	Message       string
	CorrelationID string
}

// Turn is the assistant's reply to one input.
type Turn struct {
	Intent  intent.Intent
	Message string
}

// Assistant processes user messages. Gateways depend on this interface
// rather than the concrete pipeline.
type Assistant interface {
	Process(ctx context.Context, in *Input) (*Turn, error)
}

// classifier is the slice of the intent classifier the pipeline uses.
type classifier interface {
	Classify(ctx context.Context, message string) (*intent.Classification, error)
}

// secretOps is the slice of the secrets façade the pipeline uses.
type secretOps interface {
	ListSecrets(ctx context.Context) ([]secrets.Summary, error)
	GetSecretValue(ctx context.Context, path string) (*secrets.Value, error)
	CountByType(ctx context.Context) (secrets.TypeCounts, error)
	SearchSecrets(ctx context.Context, pathPrefix string, typeFilter secrets.Type) ([]secrets.Summary, error)
}

// Pipeline is the concrete Assistant. Failures at any stage become
// formatted replies: Process returns an error only when the context is
// canceled, so gateways can always render Turn.Message.
type Pipeline struct {
	classifier classifier
	ops        secretOps
	sessions   *SessionStore
	logger     *slog.Logger
}

var _ Assistant = (*Pipeline)(nil)

// NewPipeline wires the classifier and façade into an assistant.
func NewPipeline(c classifier, ops secretOps, sessions *SessionStore, logger *slog.Logger) *Pipeline {
	return &Pipeline{classifier: c, ops: ops, sessions: sessions, logger: logger}
}

// Process handles one turn. Classification is stateless: the transcript
// is appended to for display but never consulted.
func (p *Pipeline) Process(ctx context.Context, in *Input) (*Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.sessions.Get(in.SessionID, in.UserID)

	cls, err := p.classifier.Classify(ctx, in.Message)
	if err != nil {
		p.logger.ErrorContext(ctx, "classification failed",
			slog.String("correlation_id", in.CorrelationID),
			slog.Any("error", err))
		return p.finish(in, intent.IntentUnknown,
			"Sorry, I could not process that request right now. Please try again."), nil
	}

	p.logger.InfoContext(ctx, "turn classified",
		slog.String("correlation_id", in.CorrelationID),
		slog.String("session_id", in.SessionID),
		slog.String("intent", string(cls.Intent)))

	reply := p.execute(ctx, cls)
	return p.finish(in, cls.Intent, reply), nil
}

// execute runs the secret operation for a classification and renders
// the outcome. The façade is never touched for unknown intents.
func (p *Pipeline) execute(ctx context.Context, cls *intent.Classification) string {
	switch cls.Intent {
	case intent.IntentListSecrets:
		list, err := p.ops.ListSecrets(ctx)
		if err != nil {
			return format.Error(err)
		}
		return format.SecretList(list)

	case intent.IntentGetSecret:
		path := cls.Param("path")
		if path == "" {
			return format.MissingPath()
		}
		value, err := p.ops.GetSecretValue(ctx, path)
		if err != nil {
			return format.Error(err)
		}
		return format.SecretValue(value)

	case intent.IntentCountByType:
		counts, err := p.ops.CountByType(ctx)
		if err != nil {
			return format.Error(err)
		}
		return format.TypeCounts(counts)

	case intent.IntentSearchSecrets:
		matches, err := p.ops.SearchSecrets(ctx,
			cls.Param("path_prefix"), secrets.Type(cls.Param("type_filter")))
		if err != nil {
			return format.Error(err)
		}
		return format.SearchResults(cls.Param("path_prefix"),
			secrets.Type(cls.Param("type_filter")), matches)

	default:
		return format.Clarification()
	}
}

func (p *Pipeline) finish(in *Input, it intent.Intent, reply string) *Turn {
	p.sessions.Append(in.SessionID, TurnRecord{
		UserMessage: in.Message,
		Intent:      string(it),
		Reply:       reply,
		Timestamp:   time.Now(),
	})
	return &Turn{Intent: it, Message: reply}
}
