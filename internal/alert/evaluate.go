package alert

import (
	"fmt"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// Result is the outcome of evaluating one position against its
// thresholds. Trigger is empty when nothing should fire.
type Result struct {
	Trigger domain.AlertType
	Message string
}

// Evaluate decides whether a position should fire an alert right now.
// A position with no fetched price never triggers. Take-profit is
// checked before stop-loss, so a price satisfying both (possible with
// inverted thresholds) fires take-profit only. Evaluation is
// level-triggered: any price at or beyond the threshold fires as long
// as the matching latch is still unset.
func Evaluate(p domain.Position) Result {
	if p.CurrentPrice == nil {
		return Result{}
	}
	price := *p.CurrentPrice
	pnl := ComputePnL(p)

	if price >= p.TakeProfit && !p.AlertsSent.TakeProfit {
		return Result{
			Trigger: domain.AlertTakeProfit,
			Message: fmt.Sprintf(
				"🎯 TAKE PROFIT ALERT: %s\n\nCurrent Price: $%.4f\nTarget Price: $%.4f\nPnL: %.2f%% ($%.2f)\nQuantity: %g shares\nMarket: %s",
				p.MarketQuestion, price, p.TakeProfit, pnl.Percent, pnl.Absolute, p.Quantity, p.MarketURL,
			),
		}
	}

	if price <= p.StopLoss && !p.AlertsSent.StopLoss {
		return Result{
			Trigger: domain.AlertStopLoss,
			Message: fmt.Sprintf(
				"🛑 STOP LOSS ALERT: %s\n\nCurrent Price: $%.4f\nStop Loss: $%.4f\nPnL: %.2f%% ($%.2f)\nQuantity: %g shares\nMarket: %s",
				p.MarketQuestion, price, p.StopLoss, pnl.Percent, pnl.Absolute, p.Quantity, p.MarketURL,
			),
		}
	}

	return Result{}
}
