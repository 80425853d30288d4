package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheTTL(t *testing.T) {
	cache := NewCache(time.Minute)

	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("95020000", Address{City: "Caxias do Sul", State: "RS"})

	got, ok := cache.Get("95020000")
	if !ok || got.City != "Caxias do Sul" {
		t.Fatalf("expected fresh hit, got %v %v", got, ok)
	}

	// Past the TTL the entry is gone.
	current = current.Add(time.Minute + time.Second)
	if _, ok := cache.Get("95020000"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestCacheInvalidate(t *testing.T) {
	cache := NewCache(time.Hour)
	cache.Set("k", Address{City: "X"})
	cache.Invalidate("k")
	if _, ok := cache.Get("k"); ok {
		t.Error("expected invalidated entry to miss")
	}
}

func TestLookupCachesResults(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/ws/95020000/json/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"cep":"95020-000","logradouro":"Rua Sinimbu","bairro":"Centro","localidade":"Caxias do Sul","uf":"RS"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, NewCache(time.Hour))

	// Punctuated input is normalized.
	addr, err := client.Lookup(context.Background(), "95020-000")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if addr.City != "Caxias do Sul" || addr.State != "RS" {
		t.Errorf("unexpected address: %+v", addr)
	}

	// Second lookup hits the cache, not the service.
	if _, err := client.Lookup(context.Background(), "95020000"); err != nil {
		t.Fatalf("Lookup (cached): %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls.Load())
	}
}

func TestLookupUnknownCEP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"erro": true}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, NewCache(time.Hour))
	addr, err := client.Lookup(context.Background(), "00000000")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if addr != nil {
		t.Errorf("expected nil for unknown cep, got %+v", addr)
	}
}

func TestLookupRejectsBadCEP(t *testing.T) {
	client := NewClient("http://unused", NewCache(time.Hour))
	if _, err := client.Lookup(context.Background(), "1234"); err == nil {
		t.Error("expected error for short cep")
	}
}
