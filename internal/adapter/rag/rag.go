// Package rag implements the retrieval-augmented-generation pipeline that
// backs the search_findings RPC tool, grounded on original_source's
// rag/engine.py (answer_with_rag): retrieve top-k documents, build a
// forensic prompt constrained to that context, call the LLM, and best-
// effort-parse a {"answer", "citations"} JSON object out of the reply.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/baikal/syswatch/internal/adapter/embedder"
	"github.com/baikal/syswatch/internal/adapter/llm"
	"github.com/baikal/syswatch/internal/adapter/vectorindex"
	"github.com/baikal/syswatch/internal/logging"
)

const topK = 5

// Response is the natural-language answer plus the document IDs it cites.
type Response struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

// Engine ties the vector index and LLM adapters into one query-answering
// operation. Embedder is held alongside them but Answer does not call it:
// the query text goes to the vector index as-is.
type Engine struct {
	Vectors  *vectorindex.Client
	Embedder *embedder.Client
	LLM      *llm.Client
}

func New(vectors *vectorindex.Client, emb *embedder.Client, chat *llm.Client) *Engine {
	return &Engine{Vectors: vectors, Embedder: emb, LLM: chat}
}

// Answer runs the full retrieve-then-generate pipeline for one query.
func (e *Engine) Answer(ctx context.Context, query string) Response {
	hits, err := e.Vectors.SimilaritySearch(ctx, query, topK, nil)
	if err != nil {
		logging.WithComponent("adapter.rag").Warn().Err(err).Msg("similarity search failed")
		hits = nil
	}

	docIDs := make([]string, 0, len(hits))
	var contextBuilder strings.Builder
	for i, h := range hits {
		id := h.ID
		if id == "" {
			id = fmt.Sprintf("doc-%d", i)
		}
		docIDs = append(docIDs, id)
		fmt.Fprintf(&contextBuilder, "\n[Document %d | ID: %s]\n%s\n---\n", i+1, id, h.Text)
	}

	prompt := fmt.Sprintf(forensicPromptTemplate, contextBuilder.String(), query)

	raw := e.LLM.Chat(ctx, prompt)

	var parsed Response
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed.Answer == "" {
		return Response{Answer: raw, Citations: docIDs}
	}
	return parsed
}

const forensicPromptTemplate = `You are a forensic analysis assistant.
Use ONLY the context provided. Do NOT hallucinate.

Context:
%s

Question: %s

You MUST return JSON in the following format:

{"answer": "<final conclusion>", "citations": ["<document-id-1>", "<document-id-2>"]}

Rules:
- "citations" MUST be document IDs from the context.
- If the answer cannot be found, answer "Not found".
- Do NOT cite anything not explicitly in the context.
`
