package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"
)

// Exit codes for the query command.
const (
	ExitSuccess           = 0
	ExitFailure           = 1
	ExitAccessDenied      = 2
	ExitServerUnavailable = 3
)

var (
	queryMessage   string
	queryServerURL string
	queryAPIKey    string
	queryStream    bool
	queryTimeout   int
	querySessionID string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Send a one-shot question to a running Keysage server",
	Long: `Send a natural-language question to the Keysage HTTP API.
The server classifies the question into a secret-browsing intent and
answers it against Akeyless. All access is read-only.

Examples:
  keysage query -m "what secrets do I have"
  keysage query -m "show me the value of /prod/db-password"
  keysage query -m "how many secrets do I have by type" --stream

Exit codes:
  0  success
  1  execution failure
  2  unauthorized or access denied
  3  server unavailable`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryMessage, "message", "m", "", "question to send (required)")
	queryCmd.Flags().StringVar(&queryServerURL, "server-url", "http://localhost:8080", "Keysage server URL")
	queryCmd.Flags().StringVar(&queryAPIKey, "api-key", "", "API key for server authentication (or KEYSAGE_API_KEY env)")
	queryCmd.Flags().BoolVar(&queryStream, "stream", false, "stream response via SSE")
	queryCmd.Flags().IntVar(&queryTimeout, "timeout", 60, "timeout in seconds")
	queryCmd.Flags().StringVar(&querySessionID, "session-id", "", "session ID for a continued transcript")

	_ = queryCmd.MarkFlagRequired("message")
}

func runQuery(_ *cobra.Command, _ []string) error {
	if queryMessage == "" {
		return fmt.Errorf("message is required: use -m flag")
	}

	// Resolve API key and server URL from flag or env. An empty key is
	// allowed: servers with no configured keys run in open local mode.
	apiKey := goutils.Env("KEYSAGE_API_KEY", queryAPIKey)
	serverURL := goutils.Env("KEYSAGE_SERVER_URL", queryServerURL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(queryTimeout)*time.Second)
	defer cancel()

	if queryStream {
		return runQuerySSE(ctx, serverURL, apiKey)
	}
	return runQueryHTTP(ctx, serverURL, apiKey)
}

// runQueryHTTP sends a synchronous chat turn and prints the response.
func runQueryHTTP(ctx context.Context, serverURL, apiKey string) error {
	reqBody, _ := json.Marshal(map[string]any{
		"message":    queryMessage,
		"session_id": querySessionID,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", serverURL+"/v1/chat", bytes.NewReader(reqBody))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach server at %s: %v\n", serverURL, err)
		os.Exit(ExitServerUnavailable)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		var result struct {
			Message       string `json:"message"`
			Intent        string `json:"intent"`
			SessionID     string `json:"session_id"`
			CorrelationID string `json:"correlation_id"`
		}
		_ = json.Unmarshal(respBody, &result)
		fmt.Println(result.Message)
		fmt.Fprintf(os.Stderr, "\n[intent=%s session_id=%s correlation_id=%s]\n",
			result.Intent, result.SessionID, result.CorrelationID)
		os.Exit(ExitSuccess)

	case http.StatusUnauthorized, http.StatusForbidden:
		fmt.Fprintln(os.Stderr, "Error: unauthorized (check API key)")
		os.Exit(ExitAccessDenied)

	case http.StatusTooManyRequests:
		fmt.Fprintln(os.Stderr, "Error: rate limited, try again later")
		os.Exit(ExitAccessDenied)

	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		fmt.Fprintf(os.Stderr, "Error: server unavailable (%d)\n", resp.StatusCode)
		os.Exit(ExitServerUnavailable)

	default:
		fmt.Fprintf(os.Stderr, "Error: server returned %d: %s\n", resp.StatusCode, string(respBody))
		os.Exit(ExitFailure)
	}

	return nil
}

// runQuerySSE sends a streaming chat turn and prints events as they arrive.
func runQuerySSE(ctx context.Context, serverURL, apiKey string) error {
	reqBody, _ := json.Marshal(map[string]any{
		"message":    queryMessage,
		"session_id": querySessionID,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", serverURL+"/v1/chat/stream", bytes.NewReader(reqBody))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach server at %s: %v\n", serverURL, err)
		os.Exit(ExitServerUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		fmt.Fprintln(os.Stderr, "Error: unauthorized (check API key)")
		os.Exit(ExitAccessDenied)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Error: server returned %d: %s\n", resp.StatusCode, string(body))
		os.Exit(ExitFailure)
	}

	// Parse SSE stream.
	scanner := bufio.NewScanner(resp.Body)
	exitCode := ExitSuccess

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var event struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			Intent    string `json:"intent"`
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "text":
			fmt.Println(event.Content)
			fmt.Fprintf(os.Stderr, "[intent=%s session_id=%s]\n", event.Intent, event.SessionID)
		case "error":
			fmt.Fprintf(os.Stderr, "Error: %s\n", event.Content)
			exitCode = ExitFailure
		case "done":
			os.Exit(exitCode)
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: stream interrupted: %v\n", err)
		os.Exit(ExitFailure)
	}

	return nil
}
