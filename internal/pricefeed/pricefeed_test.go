package pricefeed

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestStaticSource(t *testing.T) {
	src := Static{"ETH": big.NewRat(4_850_000, 1)}

	price, err := src.Spot(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("spot: %v", err)
	}
	if price.Cmp(big.NewRat(4_850_000, 1)) != 0 {
		t.Fatalf("unexpected price %s", price)
	}

	if _, err := src.Spot(context.Background(), "DOGE"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("missing symbol: got %v", err)
	}
}

func TestHTTPSourceCaches(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"ETH","price":"4850000.50"}`))
	}))
	defer ts.Close()

	src := NewHTTPSource(ts.URL, time.Second, time.Minute)
	ctx := context.Background()

	first, err := src.Spot(ctx, "ETH")
	if err != nil {
		t.Fatalf("spot: %v", err)
	}
	want, _ := new(big.Rat).SetString("4850000.50")
	if first.Cmp(want) != 0 {
		t.Fatalf("got %s want %s", first, want)
	}

	if _, err := src.Spot(ctx, "ETH"); err != nil {
		t.Fatalf("cached spot: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", hits.Load())
	}
}

func TestHTTPSourceUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oracle down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	src := NewHTTPSource(ts.URL, time.Second, time.Minute)
	if _, err := src.Spot(context.Background(), "ETH"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}
