package domain

import "time"

// Outcome identifies which side of a binary market a position holds.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// TokenIndex maps the outcome to the CLOB token suffix (YES=0, NO=1).
func (o Outcome) TokenIndex() int {
	if o == OutcomeNo {
		return 1
	}
	return 0
}

// AlertFlags records which one-shot alerts have already fired for a
// position. Flags only ever go from false to true.
type AlertFlags struct {
	TakeProfit bool `json:"takeProfit"`
	StopLoss   bool `json:"stopLoss"`
}

// Position is a tracked holding in a prediction-market outcome.
// CurrentPrice is nil until the first successful price fetch and is
// never cleared afterwards; a failed refresh keeps the last value.
type Position struct {
	ID             string     `json:"id"`
	MarketID       string     `json:"marketId"`
	MarketURL      string     `json:"marketUrl"`
	MarketQuestion string     `json:"marketQuestion,omitempty"`
	Outcome        Outcome    `json:"outcome"`
	EntryPrice     float64    `json:"entryPrice"`
	Quantity       float64    `json:"quantity"`
	TakeProfit     float64    `json:"takeProfit"`
	StopLoss       float64    `json:"stopLoss"`
	CurrentPrice   *float64   `json:"currentPrice,omitempty"`
	LastUpdated    *time.Time `json:"lastUpdated,omitempty"`
	AlertsSent     AlertFlags `json:"alertsSent"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// NewPosition holds the caller-supplied fields for creating a position.
// The store assigns ID and CreatedAt.
type NewPosition struct {
	MarketID       string
	MarketURL      string
	MarketQuestion string
	Outcome        Outcome
	EntryPrice     float64
	Quantity       float64
	TakeProfit     float64
	StopLoss       float64
	CurrentPrice   *float64
	LastUpdated    *time.Time
}

// PositionUpdate is a partial update. Nil fields are left unchanged.
// ID, MarketID, Outcome, AlertsSent and CreatedAt cannot be changed
// through an update.
type PositionUpdate struct {
	MarketURL      *string
	MarketQuestion *string
	EntryPrice     *float64
	Quantity       *float64
	TakeProfit     *float64
	StopLoss       *float64
}
