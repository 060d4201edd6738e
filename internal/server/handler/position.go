package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polytracker/internal/domain"
	"github.com/alanyoungcy/polytracker/internal/service"
)

// PositionService defines the methods that the position handler requires.
type PositionService interface {
	Create(ctx context.Context, in service.CreatePositionInput) (domain.Position, error)
	List(ctx context.Context) ([]domain.Position, error)
	Update(ctx context.Context, id string, upd domain.PositionUpdate) (domain.Position, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// PositionHandler serves the position CRUD endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logHandler(logger, "positions"),
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []positionView `json:"positions"`
}

// ListPositions returns every tracked position with its computed PnL.
// GET /positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: toPositionViews(positions)})
}

// createPositionRequest is the POST /positions body. entryPrice and
// quantity are pointers so a missing field is distinguishable from zero.
type createPositionRequest struct {
	MarketURL      string   `json:"marketUrl"`
	MarketQuestion string   `json:"marketQuestion"`
	Outcome        string   `json:"outcome"`
	EntryPrice     *float64 `json:"entryPrice"`
	Quantity       *float64 `json:"quantity"`
	TakeProfit     *float64 `json:"takeProfit"`
	StopLoss       *float64 `json:"stopLoss"`
}

// CreatePosition validates and creates a new tracked position, enriching
// it with the market question and an initial price on a best-effort basis.
// POST /positions
func (h *PositionHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var req createPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.MarketURL == "" {
		writeError(w, http.StatusBadRequest, "marketUrl is required")
		return
	}
	if req.EntryPrice == nil {
		writeError(w, http.StatusBadRequest, "entryPrice is required")
		return
	}
	if *req.EntryPrice < 0 || *req.EntryPrice > 1 {
		writeError(w, http.StatusBadRequest, "entryPrice must be between 0 and 1")
		return
	}
	if req.Quantity == nil || *req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be greater than 0")
		return
	}
	if req.TakeProfit != nil && (*req.TakeProfit < 0 || *req.TakeProfit > 1) {
		writeError(w, http.StatusBadRequest, "takeProfit must be between 0 and 1")
		return
	}
	if req.StopLoss != nil && (*req.StopLoss < 0 || *req.StopLoss > 1) {
		writeError(w, http.StatusBadRequest, "stopLoss must be between 0 and 1")
		return
	}

	outcome := domain.Outcome(req.Outcome)
	switch outcome {
	case "", domain.OutcomeYes, domain.OutcomeNo:
	default:
		writeError(w, http.StatusBadRequest, "outcome must be yes or no")
		return
	}

	p, err := h.positions.Create(r.Context(), service.CreatePositionInput{
		MarketURL:      req.MarketURL,
		MarketQuestion: req.MarketQuestion,
		Outcome:        outcome,
		EntryPrice:     *req.EntryPrice,
		Quantity:       *req.Quantity,
		TakeProfit:     req.TakeProfit,
		StopLoss:       req.StopLoss,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMarketURL) {
			writeError(w, http.StatusBadRequest, "could not derive a market id from marketUrl")
			return
		}
		h.logger.ErrorContext(r.Context(), "create position failed",
			slog.String("market_url", req.MarketURL),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create position")
		return
	}

	writeJSON(w, http.StatusCreated, toPositionView(p))
}

// updatePositionRequest is the PUT /positions body. All fields except id
// are optional; absent fields are left unchanged.
type updatePositionRequest struct {
	ID             string   `json:"id"`
	MarketQuestion *string  `json:"marketQuestion"`
	EntryPrice     *float64 `json:"entryPrice"`
	Quantity       *float64 `json:"quantity"`
	TakeProfit     *float64 `json:"takeProfit"`
	StopLoss       *float64 `json:"stopLoss"`
}

// UpdatePosition applies a partial update to one position.
// PUT /positions
func (h *PositionHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	var req updatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if req.EntryPrice != nil && (*req.EntryPrice < 0 || *req.EntryPrice > 1) {
		writeError(w, http.StatusBadRequest, "entryPrice must be between 0 and 1")
		return
	}
	if req.Quantity != nil && *req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be greater than 0")
		return
	}
	if req.TakeProfit != nil && (*req.TakeProfit < 0 || *req.TakeProfit > 1) {
		writeError(w, http.StatusBadRequest, "takeProfit must be between 0 and 1")
		return
	}
	if req.StopLoss != nil && (*req.StopLoss < 0 || *req.StopLoss > 1) {
		writeError(w, http.StatusBadRequest, "stopLoss must be between 0 and 1")
		return
	}

	p, err := h.positions.Update(r.Context(), req.ID, domain.PositionUpdate{
		MarketQuestion: req.MarketQuestion,
		EntryPrice:     req.EntryPrice,
		Quantity:       req.Quantity,
		TakeProfit:     req.TakeProfit,
		StopLoss:       req.StopLoss,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "update position failed",
			slog.String("position_id", req.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update position")
		return
	}

	writeJSON(w, http.StatusOK, toPositionView(p))
}

// DeletePosition removes a position.
// DELETE /positions?id=<id>
func (h *PositionHandler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id query parameter required")
		return
	}

	ok, err := h.positions.Delete(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "delete position failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete position")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "position not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
