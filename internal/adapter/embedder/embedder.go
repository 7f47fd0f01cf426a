// Package embedder batch-embeds text for the vector index. original_source
// builds its embedder via langchain's get_embeddings() (rag/embeddings.py,
// not included in the retrieved source set) pointed at an Ollama model; this
// client talks to Ollama's /api/embed endpoint directly, following the same
// net/http.Client-with-timeout shape as the llm adapter.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/baikal/syswatch/internal/logging"
)

const DefaultTimeout = 30 * time.Second

const DefaultModel = "nomic-embed-text"

// Client implements the Embedder.embed adapter contract.
type Client struct {
	BaseURL string
	Model   string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Model:   DefaultModel,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed returns one vector per input text. On any transport or decode
// failure it returns a nil slice and an error; callers that can tolerate
// a degraded vector index (the writer) treat that as non-fatal per
// spec.md §4.4 ("Vector failure is non-fatal").
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: c.Model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		logging.WithComponent("adapter.embedder").Warn().Err(err).Msg("embed request failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errStatus(resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Embeddings, nil
}

type errStatus int

func (e errStatus) Error() string {
	return "embed endpoint returned non-2xx status"
}
