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

// PollService defines the methods that the prices handler requires.
type PollService interface {
	RunCycle(ctx context.Context) (service.CycleResult, error)
	RefreshPosition(ctx context.Context, id string) (domain.Position, float64, error)
}

// PriceHandler serves the poll and single-position refresh endpoints.
type PriceHandler struct {
	poll   PollService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler with the given service and logger.
func NewPriceHandler(poll PollService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		poll:   poll,
		logger: logHandler(logger, "prices"),
	}
}

// pollResponse wraps one completed poll cycle.
type pollResponse struct {
	Message string `json:"message"`
	service.CycleResult
}

// Poll runs one poll cycle, or joins the cycle already in flight, and
// returns its summary.
// GET|POST /prices/poll
func (h *PriceHandler) Poll(w http.ResponseWriter, r *http.Request) {
	res, err := h.poll.RunCycle(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "poll cycle failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "poll cycle failed")
		return
	}
	writeJSON(w, http.StatusOK, pollResponse{Message: "prices updated", CycleResult: res})
}

// updatePriceRequest is the POST /prices/update body.
type updatePriceRequest struct {
	PositionID string `json:"positionId"`
}

// updatePriceResponse is the POST /prices/update response.
type updatePriceResponse struct {
	Success  bool         `json:"success"`
	Position positionView `json:"position"`
	Price    float64      `json:"price"`
}

// UpdatePrice fetches the current price for one position right now and
// runs the same evaluate/dispatch sequence as a full cycle.
// POST /prices/update
func (h *PriceHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req updatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PositionID == "" {
		writeError(w, http.StatusBadRequest, "positionId is required")
		return
	}

	p, price, err := h.poll.RefreshPosition(r.Context(), req.PositionID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "position not found")
		case errors.Is(err, domain.ErrPriceUnavailable):
			writeError(w, http.StatusBadGateway, "price unavailable for market")
		default:
			h.logger.ErrorContext(r.Context(), "refresh position failed",
				slog.String("position_id", req.PositionID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to update price")
		}
		return
	}

	writeJSON(w, http.StatusOK, updatePriceResponse{
		Success:  true,
		Position: toPositionView(p),
		Price:    price,
	})
}
