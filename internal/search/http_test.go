package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProvider_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("q"); got != "fortnite current season" {
			t.Errorf("query = %q", got)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"title": "Season notes", "content": "The new season is live.", "url": "https://www.example.com/season"},
			{"title": "Patch notes", "content": "Balance changes.", "url": "https://news.example.org/patch"},
			{"title": "Extra", "content": "Overflow.", "url": "https://example.com/extra"}
		]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL})
	results := p.Search(context.Background(), "fortnite current season", 2)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (capped)", len(results))
	}
	if results[0].Title != "Season notes" || results[0].Snippet != "The new season is live." {
		t.Errorf("first result = %+v", results[0])
	}
	if results[0].SourceDomain != "example.com" {
		t.Errorf("domain = %q, want example.com (www stripped)", results[0].SourceDomain)
	}
	if results[1].SourceDomain != "news.example.org" {
		t.Errorf("domain = %q", results[1].SourceDomain)
	}
}

func TestHTTPProvider_DegradesToEmpty(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL})
		if got := p.Search(context.Background(), "anything", 5); got != nil {
			t.Errorf("server error must yield nil, got %v", got)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL})
		if got := p.Search(context.Background(), "anything", 5); got != nil {
			t.Errorf("parse failure must yield nil, got %v", got)
		}
	})

	t.Run("unreachable host", func(t *testing.T) {
		p := NewHTTPProvider(HTTPConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
		if got := p.Search(context.Background(), "anything", 5); got != nil {
			t.Errorf("connection failure must yield nil, got %v", got)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		p := NewHTTPProvider(HTTPConfig{BaseURL: "http://ignored"})
		if got := p.Search(context.Background(), "   ", 5); got != nil {
			t.Errorf("empty query must yield nil, got %v", got)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results": []}`))
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL})
		if got := p.Search(ctx, "anything", 5); got != nil {
			t.Errorf("cancelled context must yield nil, got %v", got)
		}
	})
}
