package domain

import "time"

// AlertType names the threshold that fired.
type AlertType string

const (
	AlertTakeProfit AlertType = "take_profit"
	AlertStopLoss   AlertType = "stop_loss"
)

// Alert is one delivered notification, kept for history.
type Alert struct {
	ID         string    `json:"id"`
	PositionID string    `json:"positionId"`
	Type       AlertType `json:"type"`
	Price      float64   `json:"price"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}
