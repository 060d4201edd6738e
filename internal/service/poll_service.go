package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/polytracker/internal/alert"
	"github.com/alanyoungcy/polytracker/internal/domain"
)

// AlertDispatcher delivers an alert to the configured channels.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, title, message string) error
}

// CycleResult summarizes one completed poll cycle.
type CycleResult struct {
	Total       int       `json:"total"`
	Updated     int       `json:"updated"`
	AlertsFired int       `json:"alertsFired"`
	Timestamp   time.Time `json:"timestamp"`
}

// PollService runs the price poll cycle: refresh every position's price,
// evaluate thresholds, and dispatch one-shot alerts. At most one cycle
// runs at a time per process; concurrent callers share the in-flight
// cycle's result.
type PollService struct {
	store        domain.PositionStore
	alerts       domain.AlertStore
	fetcher      PriceFetcher
	dispatcher   AlertDispatcher
	priceCache   domain.PriceCache
	bus          domain.SignalBus
	logger       *slog.Logger
	fetchTimeout time.Duration

	group singleflight.Group
}

// NewPollService creates a PollService. alerts, priceCache, and bus may
// be nil; the corresponding side effects are skipped.
func NewPollService(
	store domain.PositionStore,
	alerts domain.AlertStore,
	fetcher PriceFetcher,
	dispatcher AlertDispatcher,
	priceCache domain.PriceCache,
	bus domain.SignalBus,
	fetchTimeout time.Duration,
	logger *slog.Logger,
) *PollService {
	return &PollService{
		store:        store,
		alerts:       alerts,
		fetcher:      fetcher,
		dispatcher:   dispatcher,
		priceCache:   priceCache,
		bus:          bus,
		logger:       logger.With(slog.String("component", "poll_service")),
		fetchTimeout: fetchTimeout,
	}
}

// RunCycle executes one poll cycle, or joins the cycle already in
// flight. The timer loop and the manual poll endpoint both come through
// here, so cycles never overlap.
func (s *PollService) RunCycle(ctx context.Context) (CycleResult, error) {
	v, err, _ := s.group.Do("cycle", func() (any, error) {
		return s.runCycle(ctx)
	})
	if err != nil {
		return CycleResult{}, err
	}
	return v.(CycleResult), nil
}

func (s *PollService) runCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now().UTC()

	positions, err := s.store.List(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("poll_service: list positions: %w", err)
	}

	res := CycleResult{Total: len(positions), Timestamp: start}
	if len(positions) == 0 {
		return res, nil
	}

	// Fetch all prices concurrently. A failed fetch only skips that
	// position; the rest of the cycle proceeds.
	prices := make([]*float64, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, p := range positions {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, s.fetchTimeout)
			defer cancel()

			price, err := s.fetcher.FetchPrice(fetchCtx, p.MarketID, p.Outcome)
			if err != nil {
				s.logger.WarnContext(ctx, "price fetch failed",
					slog.String("position_id", p.ID),
					slog.String("market_id", p.MarketID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			prices[i] = &price
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CycleResult{}, fmt.Errorf("poll_service: fetch prices: %w", err)
	}

	now := time.Now().UTC()
	for i, p := range positions {
		if prices[i] == nil {
			continue
		}
		price := *prices[i]
		if err := s.store.SetCurrentPrice(ctx, p.ID, price, now); err != nil {
			s.logger.ErrorContext(ctx, "persist price failed",
				slog.String("position_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.Updated++

		if s.priceCache != nil {
			if err := s.priceCache.SetPrice(ctx, p.ID, price, now); err != nil {
				s.logger.WarnContext(ctx, "price cache update failed",
					slog.String("position_id", p.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		s.publishEvent(ctx, domain.ChannelPrices, map[string]any{
			"event":       "price_update",
			"position_id": p.ID,
			"market_id":   p.MarketID,
			"price":       price,
			"timestamp":   now.Format(time.RFC3339Nano),
		})
	}

	// Re-read so evaluation sees exactly what was persisted, including
	// writes from concurrent API calls.
	positions, err = s.store.List(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("poll_service: reload positions: %w", err)
	}

	for _, p := range positions {
		if s.processAlert(ctx, p) {
			res.AlertsFired++
		}
	}

	s.logger.InfoContext(ctx, "poll cycle finished",
		slog.Int("total", res.Total),
		slog.Int("updated", res.Updated),
		slog.Int("alerts_fired", res.AlertsFired),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// processAlert evaluates one position and, when a threshold fires,
// dispatches the alert and latches the flag. The latch is only set
// after a successful dispatch, so a delivery failure is retried on the
// next cycle.
func (s *PollService) processAlert(ctx context.Context, p domain.Position) bool {
	result := alert.Evaluate(p)
	if result.Trigger == "" {
		return false
	}

	title := "Polymarket Alert: " + p.MarketQuestion
	if err := s.dispatcher.Dispatch(ctx, title, result.Message); err != nil {
		s.logger.ErrorContext(ctx, "alert dispatch failed, will retry next cycle",
			slog.String("position_id", p.ID),
			slog.String("alert_type", string(result.Trigger)),
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := s.store.MarkAlertSent(ctx, p.ID, result.Trigger); err != nil {
		s.logger.ErrorContext(ctx, "latch alert flag failed",
			slog.String("position_id", p.ID),
			slog.String("alert_type", string(result.Trigger)),
			slog.String("error", err.Error()),
		)
		return true
	}

	if s.alerts != nil {
		a := domain.Alert{
			PositionID: p.ID,
			Type:       result.Trigger,
			Message:    result.Message,
			CreatedAt:  time.Now().UTC(),
		}
		if p.CurrentPrice != nil {
			a.Price = *p.CurrentPrice
		}
		if err := s.alerts.Append(ctx, a); err != nil {
			s.logger.WarnContext(ctx, "record alert history failed",
				slog.String("position_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.publishEvent(ctx, domain.ChannelAlerts, map[string]any{
		"event":       "alert_fired",
		"position_id": p.ID,
		"alert_type":  string(result.Trigger),
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	})

	s.logger.InfoContext(ctx, "alert fired",
		slog.String("position_id", p.ID),
		slog.String("alert_type", string(result.Trigger)),
	)
	return true
}

// RefreshPosition fetches the price for a single position right now,
// persists it, and runs the same evaluate/dispatch/latch sequence as a
// full cycle. Unlike the cycle, a fetch failure is returned to the
// caller.
func (s *PollService) RefreshPosition(ctx context.Context, id string) (domain.Position, float64, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Position{}, 0, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	price, err := s.fetcher.FetchPrice(fetchCtx, p.MarketID, p.Outcome)
	cancel()
	if err != nil {
		return domain.Position{}, 0, fmt.Errorf("poll_service: refresh %s: %w", id, err)
	}

	now := time.Now().UTC()
	if err := s.store.SetCurrentPrice(ctx, id, price, now); err != nil {
		return domain.Position{}, 0, err
	}
	if s.priceCache != nil {
		if err := s.priceCache.SetPrice(ctx, id, price, now); err != nil {
			s.logger.WarnContext(ctx, "price cache update failed",
				slog.String("position_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	s.publishEvent(ctx, domain.ChannelPrices, map[string]any{
		"event":       "price_update",
		"position_id": id,
		"market_id":   p.MarketID,
		"price":       price,
		"timestamp":   now.Format(time.RFC3339Nano),
	})

	p, err = s.store.Get(ctx, id)
	if err != nil {
		return domain.Position{}, 0, err
	}
	if s.processAlert(ctx, p) {
		// Reload once more so the caller sees the latched flags.
		if latched, err := s.store.Get(ctx, id); err == nil {
			p = latched
		}
	}
	return p, price, nil
}

// Run drives poll cycles on a fixed interval until the context is
// cancelled. Cycle errors are logged, never fatal.
func (s *PollService) Run(ctx context.Context, interval time.Duration) error {
	s.logger.InfoContext(ctx, "poll loop started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "poll loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunCycle(ctx); err != nil {
				s.logger.ErrorContext(ctx, "poll cycle failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (s *PollService) publishEvent(ctx context.Context, channel string, fields map[string]any) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(fields)
	if err := s.bus.Publish(ctx, channel, evt); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
