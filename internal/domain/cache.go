package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest prices, keyed by
// position id.
type PriceCache interface {
	SetPrice(ctx context.Context, positionID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, positionID string) (float64, time.Time, error)
	GetPrices(ctx context.Context, positionIDs []string) (map[string]float64, error)
}

// SignalBus provides pub/sub fan-out for price and alert events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Bus channel names.
const (
	ChannelPrices    = "prices"
	ChannelAlerts    = "alerts"
	ChannelPositions = "positions"
)
