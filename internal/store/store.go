// Package store keeps the durable purchase trail. Every flow run writes a
// record keyed by its idempotency key so failed fulfillments stay
// reconcilable after the fact.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Purchase is one flow run's durable record.
type Purchase struct {
	RequestID         string    `json:"requestId"`
	ServiceType       string    `json:"serviceType"`
	ServiceID         string    `json:"serviceID"`
	Beneficiary       string    `json:"beneficiary"`
	LocalAmount       int64     `json:"amount"`
	TokenSymbol       string    `json:"cryptoSymbol"`
	TokenAmount       string    `json:"cryptoUsed"`
	UserAddress       string    `json:"userAddress"`
	State             string    `json:"state"`
	TxHash            string    `json:"transactionHash,omitempty"`
	FulfillmentStatus string    `json:"fulfillmentStatus,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Store abstracts purchase persistence.
type Store interface {
	// Save upserts a record by request id.
	Save(ctx context.Context, p Purchase) error
	Get(ctx context.Context, requestID string) (*Purchase, error)
	// ListByAddress returns one page of a wallet's purchases, newest first,
	// along with the total record count.
	ListByAddress(ctx context.Context, address string, page, perPage int) ([]Purchase, int, error)
}

// MemoryStore is mostly for testing.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Purchase
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Purchase)}
}

func (m *MemoryStore) Save(_ context.Context, p Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[p.RequestID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = time.Now()
	m.data[p.RequestID] = p
	return nil
}

func (m *MemoryStore) Get(_ context.Context, requestID string) (*Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.data[requestID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) ListByAddress(_ context.Context, address string, page, perPage int) ([]Purchase, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Purchase
	for _, p := range m.data {
		if strings.EqualFold(p.UserAddress, address) {
			matches = append(matches, p)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	start := (page - 1) * perPage
	if start >= total {
		return nil, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}
