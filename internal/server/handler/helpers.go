// Package handler implements the HTTP handlers for the tracker API.
package handler

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/polytracker/internal/alert"
	"github.com/alanyoungcy/polytracker/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code.
// If marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts extracts pagination and time-range parameters from the
// query string. Defaults: limit=50 (max 500), offset=0. since and until
// are RFC 3339 timestamps.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Until = &t
		}
	}
	return opts
}

// pnlView is the profit/loss block attached to every position in API
// responses. Percent is null when the entry price is zero.
type pnlView struct {
	Percent        *float64 `json:"percent"`
	Absolute       float64  `json:"absolute"`
	EffectivePrice float64  `json:"effectivePrice"`
}

// positionView is a position plus its computed PnL.
type positionView struct {
	domain.Position
	PnL pnlView `json:"pnl"`
}

func toPositionView(p domain.Position) positionView {
	pnl := alert.ComputePnL(p)
	v := positionView{
		Position: p,
		PnL: pnlView{
			Absolute:       pnl.Absolute,
			EffectivePrice: pnl.EffectivePrice,
		},
	}
	if !math.IsNaN(pnl.Percent) {
		pct := pnl.Percent
		v.PnL.Percent = &pct
	}
	return v
}

func toPositionViews(positions []domain.Position) []positionView {
	views := make([]positionView, len(positions))
	for i, p := range positions {
		views[i] = toPositionView(p)
	}
	return views
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
