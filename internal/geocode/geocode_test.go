package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestGeocode_ParsesFirstResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("q") != "Station Road, Jalgaon" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("missing user agent")
		}
		_, _ = w.Write([]byte(`[{"lat":"21.0077","lon":"75.5626"},{"lat":"1","lon":"1"}]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, UserAgent: "test-agent"}, nil)
	p, err := c.Geocode(context.Background(), "Station Road, Jalgaon")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if p.Lat != 21.0077 || p.Lng != 75.5626 {
		t.Fatalf("point = %+v", p)
	}
}

func TestGeocode_NotFoundDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, FailureThreshold: 2}, nil)
	for i := 0; i < 4; i++ {
		if _, err := c.Geocode(context.Background(), "nowhere"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if c.State() != gobreaker.StateClosed {
		t.Fatalf("breaker should stay closed on misses, got %s", c.State())
	}
}

func TestGeocode_BreakerOpensOnFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, FailureThreshold: 2, OpenTimeout: time.Minute}, nil)
	for i := 0; i < 2; i++ {
		if _, err := c.Geocode(context.Background(), "x"); err == nil || errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}
	if _, err := c.Geocode(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once open, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("open breaker must not call upstream, calls=%d", calls)
	}
}

func TestGeocode_EmptyAddress(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:0"}, nil)
	if _, err := c.Geocode(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty address, got %v", err)
	}
}
