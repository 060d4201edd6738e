package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists tracked positions. Implementations must
// serialize writes; callers never do read-modify-write on the whole
// collection.
type PositionStore interface {
	Create(ctx context.Context, np NewPosition) (Position, error)
	Get(ctx context.Context, id string) (Position, error)
	List(ctx context.Context) ([]Position, error)
	// Update applies the non-nil fields of upd and returns the result.
	// Unknown ids return ErrNotFound; an update never creates.
	Update(ctx context.Context, id string, upd PositionUpdate) (Position, error)
	// SetCurrentPrice records a fetched price for one position.
	SetCurrentPrice(ctx context.Context, id string, price float64, ts time.Time) error
	// MarkAlertSent latches one alert flag. The flag never resets.
	MarkAlertSent(ctx context.Context, id string, typ AlertType) error
	// Delete reports whether a position was removed.
	Delete(ctx context.Context, id string) (bool, error)
}

// AlertStore persists an append-only alert history.
type AlertStore interface {
	Append(ctx context.Context, alert Alert) error
	List(ctx context.Context, opts ListOpts) ([]Alert, error)
}
