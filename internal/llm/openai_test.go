package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIChat(t *testing.T) {
	var got openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer gsk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"model":"llama-3.3-70b-versatile","created":1735732800,"choices":[{"message":{"role":"assistant","content":"On time."},"finish_reason":"stop"}],"usage":{"prompt_tokens":90,"completion_tokens":4}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1/", "gsk-test", nil)
	resp, err := c.Chat(context.Background(), "llama-3.3-70b-versatile", []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q"},
	}, Options{Temperature: 0.2})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if got.Temperature == nil || *got.Temperature != 0.2 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if len(got.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(got.Messages))
	}
	if resp.Text() != "On time." || resp.InputTokens != 90 || resp.OutputTokens != 4 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOpenAIChat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	if _, err := NewOpenAIClient(srv.URL, "", nil).Chat(context.Background(), "m", nil, Options{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	if err := NewOpenAIClient(srv.URL, "k", nil).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
