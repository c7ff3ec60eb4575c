// Package llm provides a minimal client for Ollama-compatible chat endpoints
// and the model-backed review and rewrite services built on top of it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options configures a Client.
type Options struct {
	// BaseURL is the server root, e.g. http://localhost:11434.
	BaseURL string

	// Model is the model name passed on every request.
	Model string

	// Temperature controls sampling. Zero means the server default.
	Temperature float64

	// Timeout bounds a single chat round trip. Defaults to 120s; model
	// inference on large scripts is slow.
	Timeout time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to an Ollama-compatible /api/chat endpoint.
type Client struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a Client. baseURL trailing slashes are tolerated.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{opts: opts, http: hc, logger: logger}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

// Chat sends the conversation and returns the model's reply content, trimmed.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:    c.opts.Model,
		Messages: messages,
		Stream:   false,
	}
	if c.opts.Temperature != 0 {
		reqBody.Options = map[string]any{"temperature": c.opts.Temperature}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	url := c.opts.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach model server at %s: %w", c.opts.BaseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("model server error: %s", decoded.Error)
	}

	c.logger.Debug("chat round trip",
		"model", c.opts.Model,
		"elapsed", time.Since(start),
		"reply_bytes", len(decoded.Message.Content))

	return strings.TrimSpace(decoded.Message.Content), nil
}
