// Package pricefeed exposes spot prices of tokens in the local currency.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ErrUnavailable means the feed has no usable price for the symbol.
var ErrUnavailable = errors.New("price unavailable")

// Source yields the spot price of one token unit in local currency.
type Source interface {
	Spot(ctx context.Context, symbol string) (*big.Rat, error)
}

// Static is a fixed price table, used in tests.
type Static map[string]*big.Rat

func (s Static) Spot(_ context.Context, symbol string) (*big.Rat, error) {
	price, ok := s[symbol]
	if !ok || price == nil || price.Sign() <= 0 {
		return nil, ErrUnavailable
	}
	return price, nil
}

// HTTPSource reads prices from an oracle endpoint and caches them for a TTL
// so repeated quotes within a session do not re-hit the feed.
type HTTPSource struct {
	base string
	http *http.Client
	ttl  time.Duration

	mu    sync.Mutex
	cache map[string]cachedPrice
}

type cachedPrice struct {
	price   *big.Rat
	fetched time.Time
}

func NewHTTPSource(baseURL string, timeout, ttl time.Duration) *HTTPSource {
	return &HTTPSource{
		base:  baseURL,
		http:  &http.Client{Timeout: timeout},
		ttl:   ttl,
		cache: make(map[string]cachedPrice),
	}
}

type priceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (h *HTTPSource) Spot(ctx context.Context, symbol string) (*big.Rat, error) {
	h.mu.Lock()
	if entry, ok := h.cache[symbol]; ok && time.Since(entry.fetched) < h.ttl {
		h.mu.Unlock()
		return entry.price, nil
	}
	h.mu.Unlock()

	endpoint := fmt.Sprintf("%s/price?symbol=%s", h.base, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned %d", ErrUnavailable, resp.StatusCode)
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}

	price, ok := new(big.Rat).SetString(body.Price)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: bad price %q", ErrUnavailable, body.Price)
	}

	h.mu.Lock()
	h.cache[symbol] = cachedPrice{price: price, fetched: time.Now()}
	h.mu.Unlock()
	return price, nil
}
