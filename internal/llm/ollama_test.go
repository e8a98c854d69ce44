package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"patentwatch/internal/config"
)

func TestOllamaAdapterGetResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream must be disabled")
		}
		if req.Model != "qwen3:8b" || len(req.Messages) != 2 {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"qwen3:8b","message":{"role":"assistant","content":"本地回答"},"done":true}`)
	}))
	defer srv.Close()

	adapter := NewOllamaAdapter(config.OllamaConfig{BaseURL: srv.URL, Model: "qwen3:8b"})
	resp, err := adapter.GetResponse(context.Background(), []Message{
		{Role: RoleSystem, Content: "system"},
		{Role: RoleUser, Content: "question"},
	})
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if len(resp.Choices) != 1 || resp.FirstMessage().Content != "本地回答" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Fatalf("unexpected finish reason: %q", resp.Choices[0].FinishReason)
	}
}

func TestOllamaAdapterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	adapter := NewOllamaAdapter(config.OllamaConfig{BaseURL: srv.URL})
	if _, err := adapter.GetResponse(context.Background(), []Message{{Role: RoleUser, Content: "q"}}); err == nil {
		t.Fatal("expected error on http failure")
	}
}

func TestOllamaAdapterModelOverride(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"ok"},"done":true}`)
	}))
	defer srv.Close()

	adapter := NewOllamaAdapter(config.OllamaConfig{BaseURL: srv.URL, Model: "default-model"})
	if _, err := adapter.GetResponse(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, WithModel("override")); err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if gotModel != "override" {
		t.Fatalf("per-call model override ignored, got %q", gotModel)
	}
}
