package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaChat(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"model":"llama3","created_at":"2025-01-01T12:00:00Z","message":{"role":"assistant","content":" ## HANDOFF\nok "},"done":true,"total_duration":1500000000,"prompt_eval_count":120,"eval_count":40}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	resp, err := c.Chat(context.Background(), "llama3", []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
	}, Options{Temperature: 0.2, MaxTokens: 256})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if got.Stream {
		t.Error("request should not stream")
	}
	if got.Options == nil || got.Options.Temperature != 0.2 || got.Options.NumPredict != 256 {
		t.Errorf("options = %+v", got.Options)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != RoleSystem {
		t.Errorf("messages = %+v, want system kept inline", got.Messages)
	}
	if resp.Text() != "## HANDOFF\nok" {
		t.Errorf("Text() = %q", resp.Text())
	}
	if resp.InputTokens != 120 || resp.OutputTokens != 40 {
		t.Errorf("tokens = %d/%d, want 120/40", resp.InputTokens, resp.OutputTokens)
	}
	if resp.TotalDuration.Seconds() != 1.5 {
		t.Errorf("TotalDuration = %v, want 1.5s", resp.TotalDuration)
	}
	if resp.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}
}

func TestOllamaChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, nil).Chat(context.Background(), "missing", nil, Options{})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want API error 404", err)
	}
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	if err := NewOllamaClient(srv.URL, nil).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNewOllamaClient_DefaultURL(t *testing.T) {
	if c := NewOllamaClient("", nil); c.baseURL != DefaultOllamaURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultOllamaURL)
	}
}
