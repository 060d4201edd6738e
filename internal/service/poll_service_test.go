package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// fakeStore is an in-memory domain.PositionStore for service tests.
type fakeStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{positions: make(map[string]domain.Position)}
}

func (f *fakeStore) add(p domain.Position) domain.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if p.ID == "" {
		p.ID = fmt.Sprintf("pos-%d", f.nextID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Add(time.Duration(f.nextID) * time.Millisecond)
	}
	f.positions[p.ID] = p
	return p
}

func (f *fakeStore) Create(ctx context.Context, np domain.NewPosition) (domain.Position, error) {
	return f.add(domain.Position{
		MarketID:       np.MarketID,
		MarketURL:      np.MarketURL,
		MarketQuestion: np.MarketQuestion,
		Outcome:        np.Outcome,
		EntryPrice:     np.EntryPrice,
		Quantity:       np.Quantity,
		TakeProfit:     np.TakeProfit,
		StopLoss:       np.StopLoss,
		CurrentPrice:   np.CurrentPrice,
		LastUpdated:    np.LastUpdated,
	}), nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) List(ctx context.Context) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]domain.Position, 0, len(f.positions))
	for _, p := range f.positions {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, upd domain.PositionUpdate) (domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	if upd.TakeProfit != nil {
		p.TakeProfit = *upd.TakeProfit
	}
	if upd.StopLoss != nil {
		p.StopLoss = *upd.StopLoss
	}
	if upd.EntryPrice != nil {
		p.EntryPrice = *upd.EntryPrice
	}
	if upd.Quantity != nil {
		p.Quantity = *upd.Quantity
	}
	if upd.MarketURL != nil {
		p.MarketURL = *upd.MarketURL
	}
	if upd.MarketQuestion != nil {
		p.MarketQuestion = *upd.MarketQuestion
	}
	f.positions[id] = p
	return p, nil
}

func (f *fakeStore) SetCurrentPrice(ctx context.Context, id string, price float64, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.CurrentPrice = &price
	p.LastUpdated = &ts
	f.positions[id] = p
	return nil
}

func (f *fakeStore) MarkAlertSent(ctx context.Context, id string, typ domain.AlertType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[id]
	if !ok {
		return domain.ErrNotFound
	}
	switch typ {
	case domain.AlertTakeProfit:
		p.AlertsSent.TakeProfit = true
	case domain.AlertStopLoss:
		p.AlertsSent.StopLoss = true
	}
	f.positions[id] = p
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.positions[id]; !ok {
		return false, nil
	}
	delete(f.positions, id)
	return true, nil
}

// fakeFetcher serves prices per market id, with optional per-market
// errors and an optional delay.
type fakeFetcher struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
	delay  time.Duration
	calls  atomic.Int64
}

func (f *fakeFetcher) FetchPrice(ctx context.Context, marketID string, outcome domain.Outcome) (float64, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[marketID]; ok {
		return 0, err
	}
	p, ok := f.prices[marketID]
	if !ok {
		return 0, domain.ErrPriceUnavailable
	}
	return p, nil
}

// fakeDispatcher records dispatches and can fail a configurable number
// of times.
type fakeDispatcher struct {
	mu       sync.Mutex
	failures int
	calls    int
	messages []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("all senders failed")
	}
	f.messages = append(f.messages, message)
	return nil
}

// fakeAlertStore records appended alerts.
type fakeAlertStore struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (f *fakeAlertStore) Append(ctx context.Context, a domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeAlertStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Alert(nil), f.alerts...), nil
}

func newPollService(store *fakeStore, fetcher *fakeFetcher, dispatcher *fakeDispatcher, alerts *fakeAlertStore) *PollService {
	logger := slog.New(slog.DiscardHandler)
	var alertStore domain.AlertStore
	if alerts != nil {
		alertStore = alerts
	}
	return NewPollService(store, alertStore, fetcher, dispatcher, nil, nil, time.Second, logger)
}

func trackedPosition(marketID string, entry, tp, sl float64) domain.Position {
	return domain.Position{
		MarketID:       marketID,
		MarketURL:      "https://polymarket.com/event/" + marketID,
		MarketQuestion: "Question for " + marketID,
		Outcome:        domain.OutcomeYes,
		EntryPrice:     entry,
		Quantity:       100,
		TakeProfit:     tp,
		StopLoss:       sl,
	}
}

func TestRunCycleMixedFetchResults(t *testing.T) {
	store := newFakeStore()
	healthy := store.add(trackedPosition("healthy", 0.4, 0.9, 0.1))
	failing := store.add(trackedPosition("failing", 0.4, 0.9, 0.1))

	fetcher := &fakeFetcher{
		prices: map[string]float64{"healthy": 0.55},
		errs:   map[string]error{"failing": errors.New("api down")},
	}
	svc := newPollService(store, fetcher, &fakeDispatcher{}, nil)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.AlertsFired)

	got, err := store.Get(context.Background(), healthy.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	assert.InDelta(t, 0.55, *got.CurrentPrice, 1e-9)

	// The failing position is untouched.
	got, err = store.Get(context.Background(), failing.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentPrice)
}

func TestRunCycleFiresAlertOnce(t *testing.T) {
	store := newFakeStore()
	p := store.add(trackedPosition("m1", 0.4, 0.8, 0.1))

	fetcher := &fakeFetcher{prices: map[string]float64{"m1": 0.85}}
	dispatcher := &fakeDispatcher{}
	alerts := &fakeAlertStore{}
	svc := newPollService(store, fetcher, dispatcher, alerts)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.AlertsFired)
	assert.Equal(t, 1, dispatcher.calls)

	got, _ := store.Get(context.Background(), p.ID)
	assert.True(t, got.AlertsSent.TakeProfit)

	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, p.ID, alerts.alerts[0].PositionID)
	assert.Equal(t, domain.AlertTakeProfit, alerts.alerts[0].Type)

	// Price still above threshold: the latch keeps the second cycle quiet.
	res, err = svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.AlertsFired)
	assert.Equal(t, 1, dispatcher.calls)
}

func TestRunCycleDispatchFailureRetriesNextCycle(t *testing.T) {
	store := newFakeStore()
	p := store.add(trackedPosition("m1", 0.4, 0.8, 0.1))

	fetcher := &fakeFetcher{prices: map[string]float64{"m1": 0.9}}
	dispatcher := &fakeDispatcher{failures: 1}
	svc := newPollService(store, fetcher, dispatcher, nil)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.AlertsFired)

	got, _ := store.Get(context.Background(), p.ID)
	assert.False(t, got.AlertsSent.TakeProfit, "latch must stay unset after a failed dispatch")

	res, err = svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.AlertsFired)
	assert.Equal(t, 2, dispatcher.calls)

	got, _ = store.Get(context.Background(), p.ID)
	assert.True(t, got.AlertsSent.TakeProfit)
}

func TestRunCycleStopLossAfterTakeProfitLatched(t *testing.T) {
	store := newFakeStore()
	p := store.add(trackedPosition("m1", 0.4, 0.8, 0.2))

	fetcher := &fakeFetcher{prices: map[string]float64{"m1": 0.85}}
	dispatcher := &fakeDispatcher{}
	svc := newPollService(store, fetcher, dispatcher, nil)

	_, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	// Price collapses below the stop level.
	fetcher.mu.Lock()
	fetcher.prices["m1"] = 0.1
	fetcher.mu.Unlock()

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.AlertsFired)

	got, _ := store.Get(context.Background(), p.ID)
	assert.True(t, got.AlertsSent.TakeProfit)
	assert.True(t, got.AlertsSent.StopLoss)
}

func TestConcurrentRunCyclesCollapse(t *testing.T) {
	store := newFakeStore()
	store.add(trackedPosition("m1", 0.4, 0.9, 0.1))

	fetcher := &fakeFetcher{
		prices: map[string]float64{"m1": 0.5},
		delay:  50 * time.Millisecond,
	}
	svc := newPollService(store, fetcher, &fakeDispatcher{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RunCycle(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// All five callers shared one in-flight cycle: one fetch, not five.
	assert.Equal(t, int64(1), fetcher.calls.Load())
}

func TestRefreshPosition(t *testing.T) {
	store := newFakeStore()
	p := store.add(trackedPosition("m1", 0.4, 0.8, 0.1))

	fetcher := &fakeFetcher{prices: map[string]float64{"m1": 0.95}}
	dispatcher := &fakeDispatcher{}
	svc := newPollService(store, fetcher, dispatcher, nil)

	got, price, err := svc.RefreshPosition(context.Background(), p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, price, 1e-9)
	require.NotNil(t, got.CurrentPrice)
	assert.InDelta(t, 0.95, *got.CurrentPrice, 1e-9)
	assert.True(t, got.AlertsSent.TakeProfit)
	assert.Equal(t, 1, dispatcher.calls)
}

func TestRefreshPositionUnknownID(t *testing.T) {
	svc := newPollService(newFakeStore(), &fakeFetcher{}, &fakeDispatcher{}, nil)
	_, _, err := svc.RefreshPosition(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshPositionFetchFailure(t *testing.T) {
	store := newFakeStore()
	p := store.add(trackedPosition("m1", 0.4, 0.8, 0.1))

	fetcher := &fakeFetcher{errs: map[string]error{"m1": errors.New("api down")}}
	svc := newPollService(store, fetcher, &fakeDispatcher{}, nil)

	_, _, err := svc.RefreshPosition(context.Background(), p.ID)
	require.Error(t, err)

	got, _ := store.Get(context.Background(), p.ID)
	assert.Nil(t, got.CurrentPrice, "failed refresh must not touch the stored price")
}
