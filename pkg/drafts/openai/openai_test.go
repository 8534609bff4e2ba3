package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/replyforge/replyforge/pkg/drafts"
)

const chatCompletionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"choices": [
		{"index": 0, "message": {"role": "assistant", "content": "{\"drafts\": [\"a1\", \"a2\", \"a3\"]}"}, "finish_reason": "stop"}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Timeout: timeout,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestNew_MissingKey(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, drafts.ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestComplete_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	}, 0)

	out, err := client.Complete(context.Background(), "system", "user message")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != `{"drafts": ["a1", "a2", "a3"]}` {
		t.Errorf("Unexpected output: %q", out)
	}
}

func TestComplete_UpstreamError(t *testing.T) {
	secret := "internal provider detail that must not leak"
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "` + secret + `"}}`))
	}, 0)

	_, err := client.Complete(context.Background(), "system", "user message")
	if !errors.Is(err, drafts.ErrUpstream) {
		t.Fatalf("Expected ErrUpstream, got %v", err)
	}
	// The provider's error body stays out of our error chain.
	if got := err.Error(); strings.Contains(got, secret) {
		t.Errorf("Error leaked the provider body: %q", got)
	}
}

func TestComplete_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	}, 20*time.Millisecond)

	_, err := client.Complete(context.Background(), "system", "user message")
	if !errors.Is(err, drafts.ErrUpstreamTimeout) {
		t.Errorf("Expected ErrUpstreamTimeout, got %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-1", "object": "chat.completion", "choices": []}`))
	}, 0)

	_, err := client.Complete(context.Background(), "system", "user message")
	if !errors.Is(err, drafts.ErrUpstream) {
		t.Errorf("Expected ErrUpstream, got %v", err)
	}
}

