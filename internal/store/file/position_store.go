// Package file implements the position store on a single JSON document,
// matching the flat-file deployment where no database is available. All
// mutations go through one mutex and rewrite the file atomically, so
// concurrent keyed updates never clobber each other.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// PositionStore persists positions in a JSON file.
type PositionStore struct {
	path string

	mu        sync.RWMutex
	positions map[string]domain.Position
}

// NewPositionStore opens (or creates) the JSON data file at path.
func NewPositionStore(path string) (*PositionStore, error) {
	s := &PositionStore{
		path:      path,
		positions: make(map[string]domain.Position),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("file: open %s: %w", path, err)
	}
	return s, nil
}

func (s *PositionStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var list []domain.Position
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	for _, p := range list {
		s.positions[p.ID] = p
	}
	return nil
}

// flush writes the whole collection to a temp file and renames it over
// the data file. Callers must hold the write lock.
func (s *PositionStore) flush() error {
	list := s.sortedLocked()

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".positions-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// sortedLocked returns positions ordered by creation time, oldest
// first, ties broken by id for a stable file layout.
func (s *PositionStore) sortedLocked() []domain.Position {
	list := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Create assigns a fresh id and persists the position.
func (s *PositionStore) Create(ctx context.Context, np domain.NewPosition) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := domain.Position{
		ID:             uuid.NewString(),
		MarketID:       np.MarketID,
		MarketURL:      np.MarketURL,
		MarketQuestion: np.MarketQuestion,
		Outcome:        np.Outcome,
		EntryPrice:     np.EntryPrice,
		Quantity:       np.Quantity,
		TakeProfit:     np.TakeProfit,
		StopLoss:       np.StopLoss,
		CurrentPrice:   np.CurrentPrice,
		LastUpdated:    np.LastUpdated,
		CreatedAt:      time.Now().UTC(),
	}

	s.positions[p.ID] = p
	if err := s.flush(); err != nil {
		delete(s.positions, p.ID)
		return domain.Position{}, fmt.Errorf("file: create position: %w", err)
	}
	return p, nil
}

// Get returns one position by id.
func (s *PositionStore) Get(ctx context.Context, id string) (domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("file: get position %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// List returns all positions ordered by creation time.
func (s *PositionStore) List(ctx context.Context) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(), nil
}

// Update applies the non-nil fields of upd to one position. Unknown ids
// return ErrNotFound and leave the collection untouched.
func (s *PositionStore) Update(ctx context.Context, id string, upd domain.PositionUpdate) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("file: update position %s: %w", id, domain.ErrNotFound)
	}

	if upd.MarketURL != nil {
		p.MarketURL = *upd.MarketURL
	}
	if upd.MarketQuestion != nil {
		p.MarketQuestion = *upd.MarketQuestion
	}
	if upd.EntryPrice != nil {
		p.EntryPrice = *upd.EntryPrice
	}
	if upd.Quantity != nil {
		p.Quantity = *upd.Quantity
	}
	if upd.TakeProfit != nil {
		p.TakeProfit = *upd.TakeProfit
	}
	if upd.StopLoss != nil {
		p.StopLoss = *upd.StopLoss
	}

	prev := s.positions[id]
	s.positions[id] = p
	if err := s.flush(); err != nil {
		s.positions[id] = prev
		return domain.Position{}, fmt.Errorf("file: update position %s: %w", id, err)
	}
	return p, nil
}

// SetCurrentPrice records a fetched price for one position.
func (s *PositionStore) SetCurrentPrice(ctx context.Context, id string, price float64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return fmt.Errorf("file: set price for %s: %w", id, domain.ErrNotFound)
	}

	p.CurrentPrice = &price
	p.LastUpdated = &ts
	prev := s.positions[id]
	s.positions[id] = p
	if err := s.flush(); err != nil {
		s.positions[id] = prev
		return fmt.Errorf("file: set price for %s: %w", id, err)
	}
	return nil
}

// MarkAlertSent latches one alert flag. The flag never resets.
func (s *PositionStore) MarkAlertSent(ctx context.Context, id string, typ domain.AlertType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return fmt.Errorf("file: mark alert for %s: %w", id, domain.ErrNotFound)
	}

	switch typ {
	case domain.AlertTakeProfit:
		p.AlertsSent.TakeProfit = true
	case domain.AlertStopLoss:
		p.AlertsSent.StopLoss = true
	default:
		return fmt.Errorf("file: mark alert for %s: unknown alert type %q", id, typ)
	}

	prev := s.positions[id]
	s.positions[id] = p
	if err := s.flush(); err != nil {
		s.positions[id] = prev
		return fmt.Errorf("file: mark alert for %s: %w", id, err)
	}
	return nil
}

// Delete removes a position and reports whether it existed.
func (s *PositionStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return false, nil
	}

	delete(s.positions, id)
	if err := s.flush(); err != nil {
		s.positions[id] = p
		return false, fmt.Errorf("file: delete position %s: %w", id, err)
	}
	return true, nil
}
