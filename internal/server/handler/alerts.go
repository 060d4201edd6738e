package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// AlertService defines the methods that the alerts handler requires.
type AlertService interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Alert, error)
}

// AlertHandler serves the alert history endpoint.
type AlertHandler struct {
	alerts AlertService
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler with the given store and logger.
func NewAlertHandler(alerts AlertService, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: logHandler(logger, "alerts"),
	}
}

// listAlertsResponse wraps the alert history response.
type listAlertsResponse struct {
	Alerts []domain.Alert `json:"alerts"`
}

// ListAlerts returns recent fired alerts, newest first.
// GET /alerts?limit=&offset=&since=&until=
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list alerts failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, listAlertsResponse{Alerts: alerts})
}
