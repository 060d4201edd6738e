package file

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

func newTestStore(t *testing.T) (*PositionStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "positions.json")
	s, err := NewPositionStore(path)
	require.NoError(t, err)
	return s, path
}

func sampleNew() domain.NewPosition {
	return domain.NewPosition{
		MarketID:       "will-it-rain",
		MarketURL:      "https://polymarket.com/event/will-it-rain",
		MarketQuestion: "Will it rain?",
		Outcome:        domain.OutcomeYes,
		EntryPrice:     0.40,
		Quantity:       100,
		TakeProfit:     0.80,
		StopLoss:       0.20,
	}
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, sampleNew())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Nil(t, p.CurrentPrice)
	assert.False(t, p.AlertsSent.TakeProfit)
	assert.False(t, p.AlertsSent.StopLoss)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdatePartial(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, sampleNew())
	require.NoError(t, err)

	tp := 0.95
	got, err := s.Update(ctx, p.ID, domain.PositionUpdate{TakeProfit: &tp})
	require.NoError(t, err)
	assert.InDelta(t, 0.95, got.TakeProfit, 1e-9)
	// Untouched fields survive.
	assert.InDelta(t, 0.40, got.EntryPrice, 1e-9)
	assert.Equal(t, p.CreatedAt, got.CreatedAt)
	assert.Equal(t, p.ID, got.ID)
}

func TestUpdateUnknownIDLeavesCollectionUnchanged(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, sampleNew())
	require.NoError(t, err)

	q := 5.0
	_, err = s.Update(ctx, "ghost", domain.PositionUpdate{Quantity: &q})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p, list[0])
}

func TestSetCurrentPrice(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, sampleNew())
	require.NoError(t, err)

	ts := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SetCurrentPrice(ctx, p.ID, 0.55, ts))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	assert.InDelta(t, 0.55, *got.CurrentPrice, 1e-9)
	require.NotNil(t, got.LastUpdated)
	assert.True(t, got.LastUpdated.Equal(ts))

	assert.ErrorIs(t, s.SetCurrentPrice(ctx, "ghost", 0.5, ts), domain.ErrNotFound)
}

func TestMarkAlertSentIsMonotonic(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, sampleNew())
	require.NoError(t, err)

	require.NoError(t, s.MarkAlertSent(ctx, p.ID, domain.AlertTakeProfit))
	// Marking twice keeps the latch set.
	require.NoError(t, s.MarkAlertSent(ctx, p.ID, domain.AlertTakeProfit))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.AlertsSent.TakeProfit)
	assert.False(t, got.AlertsSent.StopLoss)

	// Updating thresholds does not reset the latch.
	tp := 0.99
	got, err = s.Update(ctx, p.ID, domain.PositionUpdate{TakeProfit: &tp})
	require.NoError(t, err)
	assert.True(t, got.AlertsSent.TakeProfit)
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, sampleNew())
	require.NoError(t, err)

	ok, err := s.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, sampleNew())
	require.NoError(t, err)
	require.NoError(t, s.SetCurrentPrice(ctx, p.ID, 0.61, time.Now().UTC()))
	require.NoError(t, s.MarkAlertSent(ctx, p.ID, domain.AlertStopLoss))

	reopened, err := NewPositionStore(path)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	assert.InDelta(t, 0.61, *got.CurrentPrice, 1e-9)
	assert.True(t, got.AlertsSent.StopLoss)
}

func TestConcurrentKeyedWrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 8; i++ {
		p, err := s.Create(ctx, sampleNew())
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, s.SetCurrentPrice(ctx, id, 0.5, time.Now().UTC()))
		}(id)
	}
	wg.Wait()

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 8)
	for _, p := range list {
		require.NotNil(t, p.CurrentPrice, "position %s lost its price", p.ID)
	}
}
