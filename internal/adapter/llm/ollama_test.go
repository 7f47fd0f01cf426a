package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatReturnsMessageContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": {"role": "assistant", "content": "hello"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	got := c.Chat(context.Background(), "hi")
	if got != "hello" {
		t.Fatalf("Chat() = %q, want %q", got, "hello")
	}
}

func TestChatFallsBackOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	got := c.Chat(context.Background(), "hi")
	if got != fallbackResponse {
		t.Fatalf("Chat() = %q, want fallback %q", got, fallbackResponse)
	}
}

func TestChatFallsBackOnUnreachableHost(t *testing.T) {
	c := New("http://127.0.0.1:1")
	got := c.Chat(context.Background(), "hi")
	if got != fallbackResponse {
		t.Fatalf("Chat() = %q, want fallback %q", got, fallbackResponse)
	}
}
