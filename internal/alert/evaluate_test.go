package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

func basePosition() domain.Position {
	return domain.Position{
		ID:             "p1",
		MarketQuestion: "Will it rain tomorrow?",
		MarketURL:      "https://polymarket.com/event/rain-tomorrow",
		EntryPrice:     0.50,
		Quantity:       100,
		TakeProfit:     0.80,
		StopLoss:       0.20,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Position)
		trigger domain.AlertType
	}{
		{
			name:    "no price never triggers",
			mutate:  func(p *domain.Position) { p.CurrentPrice = nil },
			trigger: "",
		},
		{
			name:    "price between thresholds",
			mutate:  func(p *domain.Position) { p.CurrentPrice = fptr(0.50) },
			trigger: "",
		},
		{
			name:    "price at take profit",
			mutate:  func(p *domain.Position) { p.CurrentPrice = fptr(0.80) },
			trigger: domain.AlertTakeProfit,
		},
		{
			name:    "price above take profit",
			mutate:  func(p *domain.Position) { p.CurrentPrice = fptr(0.95) },
			trigger: domain.AlertTakeProfit,
		},
		{
			name:    "price at stop loss",
			mutate:  func(p *domain.Position) { p.CurrentPrice = fptr(0.20) },
			trigger: domain.AlertStopLoss,
		},
		{
			name:    "price below stop loss",
			mutate:  func(p *domain.Position) { p.CurrentPrice = fptr(0.05) },
			trigger: domain.AlertStopLoss,
		},
		{
			name: "latched take profit stays silent",
			mutate: func(p *domain.Position) {
				p.CurrentPrice = fptr(0.95)
				p.AlertsSent.TakeProfit = true
			},
			trigger: "",
		},
		{
			name: "latched stop loss stays silent",
			mutate: func(p *domain.Position) {
				p.CurrentPrice = fptr(0.05)
				p.AlertsSent.StopLoss = true
			},
			trigger: "",
		},
		{
			name: "inverted thresholds favor take profit",
			mutate: func(p *domain.Position) {
				// tp=0.5, sl=0.9: price 0.95 satisfies both checks.
				p.TakeProfit = 0.5
				p.StopLoss = 0.9
				p.CurrentPrice = fptr(0.95)
			},
			trigger: domain.AlertTakeProfit,
		},
		{
			name: "inverted thresholds fall through to stop loss once tp latched",
			mutate: func(p *domain.Position) {
				p.TakeProfit = 0.5
				p.StopLoss = 0.9
				p.CurrentPrice = fptr(0.55)
				p.AlertsSent.TakeProfit = true
			},
			trigger: domain.AlertStopLoss,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePosition()
			tt.mutate(&p)
			got := Evaluate(p)
			assert.Equal(t, tt.trigger, got.Trigger)
			if tt.trigger == "" {
				assert.Empty(t, got.Message)
			} else {
				assert.NotEmpty(t, got.Message)
			}
		})
	}
}

func TestEvaluateMessageContent(t *testing.T) {
	p := basePosition()
	p.CurrentPrice = fptr(0.85)
	got := Evaluate(p)
	require.Equal(t, domain.AlertTakeProfit, got.Trigger)
	assert.Contains(t, got.Message, "TAKE PROFIT ALERT: Will it rain tomorrow?")
	assert.Contains(t, got.Message, "Current Price: $0.8500")
	assert.Contains(t, got.Message, "Target Price: $0.8000")
	assert.Contains(t, got.Message, "PnL: 70.00% ($35.00)")
	assert.Contains(t, got.Message, "Quantity: 100 shares")
	assert.Contains(t, got.Message, "Market: https://polymarket.com/event/rain-tomorrow")
}
