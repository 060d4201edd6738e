// Package service contains the application services that tie the stores,
// market clients, and notification channels together.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polytracker/internal/domain"
	"github.com/alanyoungcy/polytracker/internal/platform/polymarket"
)

// PriceFetcher fetches the current price for one outcome of a market.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, marketID string, outcome domain.Outcome) (float64, error)
}

// MarketInfoFetcher fetches market metadata.
type MarketInfoFetcher interface {
	FetchMarketInfo(ctx context.Context, marketID string) (domain.MarketInfo, error)
}

// PositionService implements the position CRUD operations on top of the
// store, enriching new positions with market metadata and an initial
// price.
type PositionService struct {
	store        domain.PositionStore
	fetcher      PriceFetcher
	marketInfo   MarketInfoFetcher
	bus          domain.SignalBus
	logger       *slog.Logger
	fetchTimeout time.Duration
}

// NewPositionService creates a PositionService. marketInfo may be nil,
// in which case market questions are never auto-filled.
func NewPositionService(
	store domain.PositionStore,
	fetcher PriceFetcher,
	marketInfo MarketInfoFetcher,
	bus domain.SignalBus,
	fetchTimeout time.Duration,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		store:        store,
		fetcher:      fetcher,
		marketInfo:   marketInfo,
		bus:          bus,
		logger:       logger.With(slog.String("component", "position_service")),
		fetchTimeout: fetchTimeout,
	}
}

// CreatePositionInput holds the caller-supplied fields for a new
// position. TakeProfit and StopLoss default to 1.0 and 0.0 when nil.
type CreatePositionInput struct {
	MarketURL      string
	MarketQuestion string
	Outcome        domain.Outcome
	EntryPrice     float64
	Quantity       float64
	TakeProfit     *float64
	StopLoss       *float64
}

// Create derives the market id from the URL, fills in the question and
// an initial price on a best-effort basis, and persists the position.
// Returns domain.ErrInvalidMarketURL when no market id can be derived.
func (s *PositionService) Create(ctx context.Context, in CreatePositionInput) (domain.Position, error) {
	marketID, err := polymarket.ExtractMarketID(in.MarketURL)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: create: %w", err)
	}

	outcome := in.Outcome
	if outcome == "" {
		outcome = domain.OutcomeYes
	}

	takeProfit := 1.0
	if in.TakeProfit != nil {
		takeProfit = *in.TakeProfit
	}
	stopLoss := 0.0
	if in.StopLoss != nil {
		stopLoss = *in.StopLoss
	}

	np := domain.NewPosition{
		MarketID:       marketID,
		MarketURL:      in.MarketURL,
		MarketQuestion: in.MarketQuestion,
		Outcome:        outcome,
		EntryPrice:     in.EntryPrice,
		Quantity:       in.Quantity,
		TakeProfit:     takeProfit,
		StopLoss:       stopLoss,
	}

	// Best effort: a metadata or price failure never blocks creation.
	if np.MarketQuestion == "" && s.marketInfo != nil {
		infoCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		info, err := s.marketInfo.FetchMarketInfo(infoCtx, marketID)
		cancel()
		if err != nil {
			s.logger.WarnContext(ctx, "market info fetch failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		} else {
			np.MarketQuestion = info.Question
		}
	}

	if s.fetcher != nil {
		priceCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		price, err := s.fetcher.FetchPrice(priceCtx, marketID, outcome)
		cancel()
		if err != nil {
			s.logger.WarnContext(ctx, "initial price fetch failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		} else {
			now := time.Now().UTC()
			np.CurrentPrice = &price
			np.LastUpdated = &now
		}
	}

	p, err := s.store.Create(ctx, np)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: create: %w", err)
	}

	s.publishPositionEvent(ctx, "position_created", p.ID)
	return p, nil
}

// Get returns one position by id.
func (s *PositionService) Get(ctx context.Context, id string) (domain.Position, error) {
	return s.store.Get(ctx, id)
}

// List returns all tracked positions.
func (s *PositionService) List(ctx context.Context) ([]domain.Position, error) {
	return s.store.List(ctx)
}

// Update applies a partial update to one position.
func (s *PositionService) Update(ctx context.Context, id string, upd domain.PositionUpdate) (domain.Position, error) {
	p, err := s.store.Update(ctx, id, upd)
	if err != nil {
		return domain.Position{}, err
	}
	s.publishPositionEvent(ctx, "position_updated", id)
	return p, nil
}

// Delete removes a position and reports whether it existed.
func (s *PositionService) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.publishPositionEvent(ctx, "position_deleted", id)
	}
	return ok, nil
}

func (s *PositionService) publishPositionEvent(ctx context.Context, event, id string) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":       event,
		"position_id": id,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err := s.bus.Publish(ctx, domain.ChannelPositions, evt); err != nil {
		s.logger.WarnContext(ctx, "publish position event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
