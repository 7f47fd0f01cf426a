// Package vectorindex talks to a Chroma-compatible vector store over its
// HTTP API, the server-mode equivalent of original_source's
// rag/vector_store.py (langchain's Chroma wrapper: add_texts + persist,
// and a similarity retriever). This client exercises the same v1 add/query
// collection endpoints Chroma's server exposes. Add forwards whatever
// embeddings the caller computed (the writer uses the embedder adapter) and
// omits them when none are given; SimilaritySearch sends the raw query
// text, so the store embeds the query itself.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/baikal/syswatch/internal/logging"
)

const DefaultTimeout = 30 * time.Second

// CollectionName matches spec.md §6's "Collection system_events".
const CollectionName = "system_events"

// Client implements the VectorIndex adapter contract: add and
// similarity_search over a named collection.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

type addRequest struct {
	IDs        []string            `json:"ids"`
	Documents  []string            `json:"documents"`
	Embeddings [][]float64         `json:"embeddings,omitempty"`
	Metadatas  []map[string]string `json:"metadatas"`
}

// Add bulk-inserts documents into the collection. Failure here is
// independent of SQL success per spec.md §4.4; callers must not treat it
// as fatal to the batch.
func (c *Client) Add(ctx context.Context, ids, texts []string, embeddings [][]float64, metadatas []map[string]string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	body, err := json.Marshal(addRequest{IDs: ids, Documents: texts, Embeddings: embeddings, Metadatas: metadatas})
	if err != nil {
		return fmt.Errorf("marshal add request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s/add", c.BaseURL, CollectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build add request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		logging.WithComponent("adapter.vectorindex").Warn().Err(err).Msg("add request failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vector index add returned status %d", resp.StatusCode)
	}
	return nil
}

// SearchResult is one hit from a similarity search.
type SearchResult struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64
}

type queryRequest struct {
	QueryTexts  []string          `json:"query_texts"`
	NResults    int               `json:"n_results"`
	WhereFilter map[string]any    `json:"where,omitempty"`
}

type queryResponse struct {
	IDs       [][]string            `json:"ids"`
	Documents [][]string            `json:"documents"`
	Metadatas [][]map[string]string `json:"metadatas"`
	Distances [][]float64           `json:"distances"`
}

// SimilaritySearch retrieves the k nearest documents to query, optionally
// constrained by an equality/$in/$gte filter per spec.md §6.
func (c *Client) SimilaritySearch(ctx context.Context, query string, k int, filter map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	body, err := json.Marshal(queryRequest{QueryTexts: []string{query}, NResults: k, WhereFilter: filter})
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s/query", c.BaseURL, CollectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		logging.WithComponent("adapter.vectorindex").Warn().Err(err).Msg("query request failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vector index query returned status %d", resp.StatusCode)
	}

	var parsed queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	if len(parsed.IDs) == 0 {
		return nil, nil
	}

	var results []SearchResult
	for i := range parsed.IDs[0] {
		r := SearchResult{ID: parsed.IDs[0][i]}
		if i < len(parsed.Documents[0]) {
			r.Text = parsed.Documents[0][i]
		}
		if i < len(parsed.Metadatas[0]) {
			r.Metadata = parsed.Metadatas[0][i]
		}
		if i < len(parsed.Distances[0]) {
			r.Distance = parsed.Distances[0][i]
		}
		results = append(results, r)
	}
	return results, nil
}
