package rag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/baikal/syswatch/internal/adapter/embedder"
	"github.com/baikal/syswatch/internal/adapter/llm"
	"github.com/baikal/syswatch/internal/adapter/vectorindex"
)

func TestAnswerParsesStructuredLLMReply(t *testing.T) {
	vectorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"ids": [["doc-1"]],
			"documents": [["process pid=42 name=miner"]],
			"metadatas": [[{"type": "process"}]],
			"distances": [[0.05]]
		}`))
	}))
	defer vectorSrv.Close()

	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": {"role": "assistant", "content": "{\"answer\": \"likely a cryptojacker\", \"citations\": [\"doc-1\"]}"}}`))
	}))
	defer llmSrv.Close()

	engine := New(vectorindex.New(vectorSrv.URL), embedder.New("http://127.0.0.1:1"), llm.New(llmSrv.URL))
	resp := engine.Answer(context.Background(), "is there a cryptojacker running?")

	if resp.Answer != "likely a cryptojacker" {
		t.Fatalf("Answer = %q, want parsed answer", resp.Answer)
	}
	if len(resp.Citations) != 1 || resp.Citations[0] != "doc-1" {
		t.Fatalf("Citations = %v, want [doc-1]", resp.Citations)
	}
}

func TestAnswerFallsBackToRawTextAndDocIDs(t *testing.T) {
	vectorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"ids": [["doc-7"]],
			"documents": [["network flow dst=8.8.8.8"]],
			"metadatas": [[{"type": "network_flow"}]],
			"distances": [[0.2]]
		}`))
	}))
	defer vectorSrv.Close()

	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": {"role": "assistant", "content": "not valid json"}}`))
	}))
	defer llmSrv.Close()

	engine := New(vectorindex.New(vectorSrv.URL), embedder.New("http://127.0.0.1:1"), llm.New(llmSrv.URL))
	resp := engine.Answer(context.Background(), "what happened?")

	if resp.Answer != "not valid json" {
		t.Fatalf("Answer = %q, want raw LLM text", resp.Answer)
	}
	if len(resp.Citations) != 1 || resp.Citations[0] != "doc-7" {
		t.Fatalf("Citations = %v, want [doc-7]", resp.Citations)
	}
}

func TestAnswerDegradesWhenVectorSearchFails(t *testing.T) {
	vectorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer vectorSrv.Close()

	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": {"role": "assistant", "content": "{\"answer\": \"Not found\", \"citations\": []}"}}`))
	}))
	defer llmSrv.Close()

	engine := New(vectorindex.New(vectorSrv.URL), embedder.New("http://127.0.0.1:1"), llm.New(llmSrv.URL))
	resp := engine.Answer(context.Background(), "anything?")

	if resp.Answer != "Not found" {
		t.Fatalf("Answer = %q, want %q", resp.Answer, "Not found")
	}
}
