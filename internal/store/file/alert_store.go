package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// AlertStore keeps the alert history as an append-only JSONL file, one
// alert per line.
type AlertStore struct {
	path string
	mu   sync.Mutex
}

// NewAlertStore creates an AlertStore writing to path.
func NewAlertStore(path string) *AlertStore {
	return &AlertStore{path: path}
}

// Append writes one alert to the log. An empty alert ID is filled in.
func (s *AlertStore) Append(ctx context.Context, alert domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("file: mkdir for alert log: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file: open alert log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("file: encode alert: %w", err)
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("file: append alert: %w", err)
	}
	return nil
}

// List returns alerts newest first, honoring Limit/Offset and the
// optional time bounds.
func (s *AlertStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file: open alert log: %w", err)
	}
	defer f.Close()

	var all []domain.Alert
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var a domain.Alert
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			return nil, fmt.Errorf("file: decode alert line: %w", err)
		}
		if opts.Since != nil && a.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && a.CreatedAt.After(*opts.Until) {
			continue
		}
		all = append(all, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("file: scan alert log: %w", err)
	}

	// Newest first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(all) {
			return nil, nil
		}
		all = all[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}
