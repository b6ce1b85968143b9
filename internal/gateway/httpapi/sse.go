package httpapi

import (
	"github.com/google/uuid"

	"github.com/jkaninda/okapi"

	"github.com/mwenda/keysage/internal/assistant"
)

// SSEEvent represents a server-sent event for streaming chat replies.
type SSEEvent struct {
	Type      string `json:"type"`                 // "text", "done", "error"
	Content   string `json:"content,omitempty"`    // Text content.
	Intent    string `json:"intent,omitempty"`     // Resolved intent for text events.
	SessionID string `json:"session_id,omitempty"` // Session the turn belongs to.
}

// handleChatStream handles POST /v1/chat/stream with SSE responses.
// Runs the assistant and streams the result as server-sent events.
func (g *Gateway) handleChatStream(c *okapi.Context) error {
	userID := c.GetString("userID")
	if userID == "" {
		return c.AbortUnauthorized("Unauthorized")
	}

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
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	// Process through the assistant (buffered — the reply is streamed as events).
	turn, err := g.assistant.Process(c.Context(), &assistant.Input{
		SessionID:     sessionID,
		UserID:        userID,
		Message:       req.Message,
		CorrelationID: correlationID,
	})
	if err != nil {
		c.SSEvent("error", SSEEvent{Content: "processing failed"})
		return nil
	}

	if g.config.Metrics != nil {
		g.config.Metrics.IntentClassificationsTotal.WithLabelValues(string(turn.Intent)).Inc()
	}

	if turn.Message != "" {
		c.SSEvent("text", SSEEvent{
			Content:   turn.Message,
			Intent:    string(turn.Intent),
			SessionID: sessionID,
		})
	}
	c.SSEvent("done", SSEEvent{Type: "done"})
	return nil
}
