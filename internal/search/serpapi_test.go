package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"patentwatch/internal/config"
)

func testConfig(url string) config.SearchConfig {
	return config.SearchConfig{APIKey: "test-key", BaseURL: url, ResultCount: 30, TimeoutSeconds: 5}
}

func TestSearchBuildsDigest(t *testing.T) {
	var gotQuery, gotEngine, gotNum string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = q.Get("q")
		gotEngine = q.Get("engine")
		gotNum = q.Get("num")
		if q.Get("api_key") != "test-key" {
			t.Errorf("missing api key")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"organic_results":[
			{"snippet":"第一条结果","link":"http://a.example"},
			{"snippet":"第二条结果","link":"http://b.example"}
		]}`)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	digest, urls, err := client.Search(context.Background(), "专利 侵权", "2024-01-01")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "专利 侵权 after:2024-01-01" {
		t.Fatalf("after date not appended: %q", gotQuery)
	}
	if gotEngine != "google" || gotNum != "30" {
		t.Fatalf("unexpected engine/num: %q %q", gotEngine, gotNum)
	}
	want := "1. 第一条结果 [URL: http://a.example]\n2. 第二条结果 [URL: http://b.example]"
	if digest != want {
		t.Fatalf("digest mismatch:\n got %q\nwant %q", digest, want)
	}
	if len(urls) != 2 || urls[0] != "http://a.example" {
		t.Fatalf("unexpected urls: %v", urls)
	}
}

func TestSearchNoAfterDate(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"organic_results":[]}`)
	}))
	defer srv.Close()

	client, _ := NewClient(testConfig(srv.URL))
	digest, urls, err := client.Search(context.Background(), "query", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "query" {
		t.Fatalf("query mutated without after date: %q", gotQuery)
	}
	if digest != "" || len(urls) != 0 {
		t.Fatalf("empty result set should give empty digest, got %q %v", digest, urls)
	}
}

func TestSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, _ := NewClient(testConfig(srv.URL))
	if _, _, err := client.Search(context.Background(), "q", ""); err == nil {
		t.Fatal("expected error on http failure")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(config.SearchConfig{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
