package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given
// connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, market_id, market_url, market_question, outcome,
	entry_price, quantity, take_profit, stop_loss,
	current_price, last_updated, alert_tp_sent, alert_sl_sent, created_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var outcome string

	err := row.Scan(
		&p.ID, &p.MarketID, &p.MarketURL, &p.MarketQuestion, &outcome,
		&p.EntryPrice, &p.Quantity, &p.TakeProfit, &p.StopLoss,
		&p.CurrentPrice, &p.LastUpdated,
		&p.AlertsSent.TakeProfit, &p.AlertsSent.StopLoss,
		&p.CreatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Outcome = domain.Outcome(outcome)
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Create inserts a new position with a fresh id.
func (s *PositionStore) Create(ctx context.Context, np domain.NewPosition) (domain.Position, error) {
	id := uuid.NewString()

	const query = `
		INSERT INTO positions (
			id, market_id, market_url, market_question, outcome,
			entry_price, quantity, take_profit, stop_loss,
			current_price, last_updated, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, NOW(), NOW()
		)
		RETURNING ` + positionSelectCols

	row := s.pool.QueryRow(ctx, query,
		id, np.MarketID, np.MarketURL, np.MarketQuestion, string(np.Outcome),
		np.EntryPrice, np.Quantity, np.TakeProfit, np.StopLoss,
		np.CurrentPrice, np.LastUpdated,
	)
	p, err := scanPositionRow(row)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: create position: %w", err)
	}
	return p, nil
}

// Get retrieves a single position by its ID.
func (s *PositionStore) Get(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, domain.ErrNotFound)
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// List returns all positions ordered by creation time.
func (s *PositionStore) List(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// Update applies the non-nil fields of upd to one position.
func (s *PositionStore) Update(ctx context.Context, id string, upd domain.PositionUpdate) (domain.Position, error) {
	query := `UPDATE positions SET updated_at = NOW()`
	args := []any{id}
	argIdx := 2

	set := func(col string, val any) {
		query += fmt.Sprintf(", %s = $%d", col, argIdx)
		args = append(args, val)
		argIdx++
	}

	if upd.MarketURL != nil {
		set("market_url", *upd.MarketURL)
	}
	if upd.MarketQuestion != nil {
		set("market_question", *upd.MarketQuestion)
	}
	if upd.EntryPrice != nil {
		set("entry_price", *upd.EntryPrice)
	}
	if upd.Quantity != nil {
		set("quantity", *upd.Quantity)
	}
	if upd.TakeProfit != nil {
		set("take_profit", *upd.TakeProfit)
	}
	if upd.StopLoss != nil {
		set("stop_loss", *upd.StopLoss)
	}

	query += ` WHERE id = $1 RETURNING ` + positionSelectCols

	row := s.pool.QueryRow(ctx, query, args...)
	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, fmt.Errorf("postgres: update position %s: %w", id, domain.ErrNotFound)
		}
		return domain.Position{}, fmt.Errorf("postgres: update position %s: %w", id, err)
	}
	return p, nil
}

// SetCurrentPrice records a fetched price for one position.
func (s *PositionStore) SetCurrentPrice(ctx context.Context, id string, price float64, ts time.Time) error {
	const query = `
		UPDATE positions SET
			current_price = $2,
			last_updated  = $3,
			updated_at    = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, price, ts)
	if err != nil {
		return fmt.Errorf("postgres: set price for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: set price for %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkAlertSent latches one alert flag. The flag never resets.
func (s *PositionStore) MarkAlertSent(ctx context.Context, id string, typ domain.AlertType) error {
	var col string
	switch typ {
	case domain.AlertTakeProfit:
		col = "alert_tp_sent"
	case domain.AlertStopLoss:
		col = "alert_sl_sent"
	default:
		return fmt.Errorf("postgres: mark alert for %s: unknown alert type %q", id, typ)
	}

	query := fmt.Sprintf(
		`UPDATE positions SET %s = TRUE, updated_at = NOW() WHERE id = $1`, col)

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: mark alert for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark alert for %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a position and reports whether it existed.
func (s *PositionStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("postgres: delete position %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}
