package gasstation

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// MemoryCache is an in-process domain.GasPriceCache used when no redis is
// configured.
type MemoryCache struct {
	mu    sync.RWMutex
	price *big.Int
	at    time.Time
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (m *MemoryCache) SetFastPrice(_ context.Context, price *big.Int, observedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.price = new(big.Int).Set(price)
	m.at = observedAt
	return nil
}

func (m *MemoryCache) FastPrice(context.Context) (*big.Int, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.price == nil {
		return nil, time.Time{}, domain.ErrNotFound
	}
	return new(big.Int).Set(m.price), m.at, nil
}
