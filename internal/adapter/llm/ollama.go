// Package llm wraps a chat-completion endpoint. Client targets Ollama's
// /api/chat, grounded on original_source's rag/engine.py (call_ollama):
// same request shape (model, messages, stream:false) and the same
// message/messages response tolerance, translated from httpx.AsyncClient
// to net/http.Client with a context timeout, in the style of
// cuemby-warren's pkg/health/http.go HTTPChecker.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/baikal/syswatch/internal/logging"
)

// DefaultTimeout matches spec.md §4.7's "caller sets a timeout (60s default)".
const DefaultTimeout = 60 * time.Second

const DefaultModel = "mistral:latest"

// Client implements the LLM.chat adapter contract.
type Client struct {
	BaseURL string
	Model   string
	HTTP    *http.Client
}

// New builds a Client pointed at an Ollama-compatible base URL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Model:   DefaultModel,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message  *chatMessage  `json:"message"`
	Messages []chatMessage `json:"messages"`
}

const fallbackResponse = "the assistant is temporarily unavailable"

// Chat sends a single user prompt and returns the model's reply. Per
// spec.md §4.7, any non-2xx response or transport error yields the safe
// fallback string rather than propagating an error out of the adapter.
func (c *Client) Chat(ctx context.Context, prompt string) string {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Stream: false,
	})
	if err != nil {
		logging.WithComponent("adapter.llm").Error().Err(err).Msg("marshal chat request")
		return fallbackResponse
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fallbackResponse
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		logging.WithComponent("adapter.llm").Warn().Err(err).Msg("ollama chat request failed")
		return fallbackResponse
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.WithComponent("adapter.llm").Warn().Int("status", resp.StatusCode).Msg("ollama chat non-2xx")
		return fallbackResponse
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fallbackResponse
	}

	if parsed.Message != nil {
		return parsed.Message.Content
	}
	if len(parsed.Messages) > 0 {
		return parsed.Messages[len(parsed.Messages)-1].Content
	}
	return fallbackResponse
}
