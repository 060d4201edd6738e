package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

func TestPriceCacheRoundTrip(t *testing.T) {
	pc := NewPriceCache()
	ctx := context.Background()

	ts := time.Now().UTC()
	require.NoError(t, pc.SetPrice(ctx, "p1", 0.42, ts))

	price, gotTS, err := pc.GetPrice(ctx, "p1")
	require.NoError(t, err)
	assert.InDelta(t, 0.42, price, 1e-9)
	assert.True(t, gotTS.Equal(ts))

	_, _, err = pc.GetPrice(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPriceCacheGetPricesOmitsUnknown(t *testing.T) {
	pc := NewPriceCache()
	ctx := context.Background()

	require.NoError(t, pc.SetPrice(ctx, "a", 0.1, time.Now()))
	require.NoError(t, pc.SetPrice(ctx, "b", 0.2, time.Now()))

	got, err := pc.GetPrices(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.InDelta(t, 0.1, got["a"], 1e-9)
	assert.InDelta(t, 0.2, got["b"], 1e-9)
}

func TestSignalBusDelivers(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "prices")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "prices", []byte("hello")))

	select {
	case msg := <-ch:
		assert.Equal(t, []byte("hello"), msg)
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestSignalBusUnsubscribeOnCancel(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, "alerts")
	require.NoError(t, err)

	cancel()

	// Channel closes once the context is done.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed")
		}
	}
}
