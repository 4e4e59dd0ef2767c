package shortener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const longURL = "https://t.me/filegatebot?start=get_file-abc"

func TestShortenSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api") != "test-key" {
			t.Errorf("api param = %q, want test-key", q.Get("api"))
		}
		if q.Get("url") != longURL {
			t.Errorf("url param = %q, want %q", q.Get("url"), longURL)
		}
		if q.Get("format") != "text" {
			t.Errorf("format param = %q, want text", q.Get("format"))
		}
		w.Write([]byte("https://sho.rt/abc123\n"))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", 5*time.Second, nil)
	got := c.Shorten(context.Background(), longURL)
	if got != "https://sho.rt/abc123" {
		t.Errorf("Shorten = %q, want https://sho.rt/abc123", got)
	}
}

func TestShortenFallsBackOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", 5*time.Second, nil)
	if got := c.Shorten(context.Background(), longURL); got != longURL {
		t.Errorf("Shorten = %q, want fallback to long URL", got)
	}
}

func TestShortenFallsBackOnNonURLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"quota exceeded"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", 5*time.Second, nil)
	if got := c.Shorten(context.Background(), longURL); got != longURL {
		t.Errorf("Shorten = %q, want fallback to long URL", got)
	}
}

func TestShortenWithoutKeySkipsUpstream(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second, nil)
	if got := c.Shorten(context.Background(), longURL); got != longURL {
		t.Errorf("Shorten = %q, want long URL", got)
	}
	if called {
		t.Error("upstream called despite missing API key")
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", 5*time.Second, nil)
	for i := 0; i < 10; i++ {
		if got := c.Shorten(context.Background(), longURL); got != longURL {
			t.Fatalf("Shorten = %q, want long URL", got)
		}
	}
	// Threshold is 3: the breaker must have stopped most of the traffic.
	if hits > 3 {
		t.Errorf("upstream hit %d times, want at most 3 before the breaker opened", hits)
	}
}
