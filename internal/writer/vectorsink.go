// Vector-index sink for the writer, grounded on original_source's
// rag/vector_store.py add_documents (embed then bulk-add, persisted
// independently of the relational write).
package writer

import (
	"context"
	"fmt"

	"github.com/baikal/syswatch/internal/adapter/embedder"
	"github.com/baikal/syswatch/internal/adapter/vectorindex"
	"github.com/baikal/syswatch/internal/document"
	"github.com/baikal/syswatch/internal/event"
)

// VectorSink projects events to documents and pushes them to the vector
// index, embedding batch-at-a-time via the embedder adapter.
type VectorSink struct {
	Embedder *embedder.Client
	Index    *vectorindex.Client
}

func NewVectorSink(emb *embedder.Client, index *vectorindex.Client) *VectorSink {
	return &VectorSink{Embedder: emb, Index: index}
}

// WriteBatch projects every event to a document and bulk-inserts the
// batch into the vector index. Per spec.md §4.4, this failure is always
// independent of the SQL write's success.
func (v *VectorSink) WriteBatch(ctx context.Context, events []event.UnifiedEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]document.Document, 0, len(events))
	for _, e := range events {
		docs = append(docs, document.Project(e))
	}

	texts := make([]string, len(docs))
	ids := make([]string, len(docs))
	metadatas := make([]map[string]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
		ids[i] = d.ID
		metadatas[i] = d.Metadata
	}

	var embeddings [][]float64
	if v.Embedder != nil {
		vecs, err := v.Embedder.Embed(ctx, texts)
		if err == nil {
			embeddings = vecs
		}
	}

	if err := v.Index.Add(ctx, ids, texts, embeddings, metadatas); err != nil {
		return fmt.Errorf("vector index add: %w", err)
	}
	return nil
}
