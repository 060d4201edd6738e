// Package memory provides in-process implementations of the cache and
// bus interfaces for deployments that run without Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

type priceEntry struct {
	price float64
	ts    time.Time
}

// PriceCache implements domain.PriceCache with a plain map.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]priceEntry
}

// NewPriceCache creates an empty PriceCache.
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]priceEntry)}
}

// SetPrice stores the latest price and timestamp for a position.
func (pc *PriceCache) SetPrice(ctx context.Context, positionID string, price float64, ts time.Time) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.prices[positionID] = priceEntry{price: price, ts: ts}
	return nil
}

// GetPrice retrieves the latest price and timestamp for a position.
func (pc *PriceCache) GetPrice(ctx context.Context, positionID string) (float64, time.Time, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	e, ok := pc.prices[positionID]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return e.price, e.ts, nil
}

// GetPrices retrieves the latest prices for multiple positions. Unknown
// ids are omitted from the result map.
func (pc *PriceCache) GetPrices(ctx context.Context, positionIDs []string) (map[string]float64, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	result := make(map[string]float64, len(positionIDs))
	for _, id := range positionIDs {
		if e, ok := pc.prices[id]; ok {
			result[id] = e.price
		}
	}
	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
