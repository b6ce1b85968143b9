package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mwenda/keysage/internal/llm"
)

const systemPrompt = `You classify user requests about browsing secrets in a vault.

Respond with a single JSON object and nothing else:
{"intent": "<intent>", "params": {...}}

Intents:
- "list_secrets": the user wants to see all secrets. params: {}
- "get_secret": the user wants the value of one secret. params: {"path": "<secret path or name>"}
- "count_by_type": the user wants counts or a breakdown of secrets by type. params: {}
- "search_secrets": the user wants to find secrets matching criteria. params may include "path_prefix" and/or "type_filter" (one of "static", "rotated", "dynamic", "other")
- "unknown": anything else, including requests to create, modify or delete secrets, off-topic questions, or requests you cannot map to the intents above.

Rules:
- Output only the JSON object. No prose, no markdown.
- Never invent parameter values the user did not state.
- When unsure, choose "unknown" with empty params.`

const classifierMaxTokens = 256

// Classifier turns a user message into a Classification via an LLM provider.
type Classifier struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewClassifier creates a classifier backed by the given provider.
func NewClassifier(provider llm.Provider, logger *slog.Logger) *Classifier {
	return &Classifier{provider: provider, logger: logger}
}

// classifyReply is the wire shape the model must produce.
type classifyReply struct {
	Intent string            `json:"intent"`
	Params map[string]string `json:"params"`
}

// Classify classifies a single user message. Each call is independent: no
// conversation state is carried between turns. A reply that violates the
// expected JSON shape yields IntentUnknown with a nil error. A provider
// failure yields a *ClassificationError.
func (c *Classifier) Classify(ctx context.Context, message string) (*Classification, error) {
	resp, err := c.provider.SendMessage(ctx, &llm.Request{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: message},
		},
		MaxTokens:        classifierMaxTokens,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}

	reply, ok := parseReply(resp.Content)
	if !ok {
		c.logger.WarnContext(ctx, "classifier returned malformed reply",
			slog.String("provider", c.provider.Name()),
			slog.String("content", truncate(resp.Content, 200)))
		return &Classification{Intent: IntentUnknown, Params: map[string]string{}}, nil
	}

	cls := &Classification{Intent: Intent(reply.Intent), Params: reply.Params}
	if cls.Params == nil {
		cls.Params = map[string]string{}
	}
	if !cls.Intent.Valid() {
		c.logger.WarnContext(ctx, "classifier returned unrecognized intent",
			slog.String("intent", reply.Intent))
		cls.Intent = IntentUnknown
		cls.Params = map[string]string{}
	}

	c.logger.DebugContext(ctx, "classified message",
		slog.String("intent", string(cls.Intent)),
		slog.Int("params", len(cls.Params)))
	return cls, nil
}

// parseReply decodes the model output strictly. Unknown fields, trailing
// data, or non-object shapes all fail the parse.
func parseReply(content string) (*classifyReply, bool) {
	text := stripFences(strings.TrimSpace(content))

	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	var reply classifyReply
	if err := dec.Decode(&reply); err != nil {
		return nil, false
	}
	// Reject trailing content after the object.
	if dec.More() {
		return nil, false
	}
	if reply.Intent == "" {
		return nil, false
	}
	return &reply, true
}

// stripFences removes a surrounding markdown code fence if present. Models
// sometimes wrap JSON output even when told not to.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
