// Package cli implements an interactive CLI gateway for Keysage.
package cli

import (
	"bufio"
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/mwenda/keysage/internal/assistant"
)

const cliUserID = "cli-user"

// Gateway is the interactive command-line interface.
type Gateway struct {
	assistant assistant.Assistant
	logger    *slog.Logger
	done      chan struct{} // closed by Stop to signal shutdown
	sessionID string        // persistent for the entire CLI session
}

// NewGateway creates a CLI gateway backed by the given assistant.
func NewGateway(a assistant.Assistant, logger *slog.Logger) *Gateway {
	return &Gateway{
		assistant: a,
		logger:    logger,
		done:      make(chan struct{}),
		sessionID: uuid.New().String(),
	}
}

// Start runs the interactive REPL. Blocks until ctx is cancelled,
// Stop is called, or the user types "exit".
func (g *Gateway) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Keysage — conversational browser for your Akeyless secrets")
	fmt.Println("Ask things like \"list my secrets\" or \"get /prod/db-password\". Type \"exit\" to quit.")
	fmt.Println()

	for {
		fmt.Print("keysage> ")

		// Check for context cancellation or Stop signal between prompts.
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down.")
			return nil
		case <-g.done:
			fmt.Println("\nShutting down.")
			return nil
		default:
		}

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" || line == "bye" {
			fmt.Println("Goodbye.")
			return nil
		}

		correlationID := newCorrelationID()

		input := &assistant.Input{
			SessionID:     g.sessionID,
			UserID:        cliUserID,
			Message:       line,
			CorrelationID: correlationID,
		}

		g.logger.DebugContext(ctx, "cli request",
			slog.String("user_id", cliUserID),
			slog.String("correlation_id", correlationID),
		)

		turn, err := g.assistant.Process(ctx, input)
		if err != nil {
			g.logger.ErrorContext(ctx, "assistant processing failed",
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		fmt.Println()
		fmt.Println(turn.Message)
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	return nil
}

// Stop signals the REPL to shut down.
func (g *Gateway) Stop(_ context.Context) error {
	select {
	case <-g.done:
		// Already closed.
	default:
		close(g.done)
	}
	return nil
}

// newCorrelationID generates a short random hex ID for request tracing.
func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}
