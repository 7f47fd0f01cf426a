package vectorindex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAddNoopOnEmptyIDs(t *testing.T) {
	c := New("http://127.0.0.1:1")
	if err := c.Add(context.Background(), nil, nil, nil, nil); err != nil {
		t.Fatalf("Add(empty) error: %v", err)
	}
}

func TestAddPostsToCollectionEndpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Add(context.Background(), []string{"id1"}, []string{"text"}, nil, []map[string]string{{"type": "process"}})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	want := "/api/v1/collections/system_events/add"
	if gotPath != want {
		t.Fatalf("Add() hit path %q, want %q", gotPath, want)
	}
}

func TestSimilaritySearchParsesHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"ids": [["doc-1", "doc-2"]],
			"documents": [["first", "second"]],
			"metadatas": [[{"type": "process"}, {"type": "network_flow"}]],
			"distances": [[0.1, 0.2]]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	hits, err := c.SimilaritySearch(context.Background(), "query", 2, nil)
	if err != nil {
		t.Fatalf("SimilaritySearch() error: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "doc-1" || hits[0].Text != "first" {
		t.Fatalf("SimilaritySearch() = %+v, unexpected shape", hits)
	}
}

func TestSimilaritySearchErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.SimilaritySearch(context.Background(), "query", 0, nil)
	if err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}
