package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// BlobWriter is the upload surface the archiver needs. *Writer satisfies
// it; tests substitute an in-memory implementation.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// PositionLister provides read access to positions for archival.
type PositionLister interface {
	List(ctx context.Context) ([]domain.Position, error)
}

// AlertLister provides read access to alert history for archival.
type AlertLister interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Alert, error)
}

// alertSnapshotLimit caps how much alert history one snapshot carries.
const alertSnapshotLimit = 1000

// Archiver periodically snapshots all tracked positions and recent alert
// history to the object store as JSONL files. Snapshots are additive;
// nothing is deleted from the primary store.
type Archiver struct {
	writer    BlobWriter
	positions PositionLister
	alerts    AlertLister
	logger    *slog.Logger
}

// NewArchiver creates an Archiver. alerts may be nil, in which case only
// positions are snapshotted.
func NewArchiver(writer BlobWriter, positions PositionLister, alerts AlertLister, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		positions: positions,
		alerts:    alerts,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Snapshot uploads one positions file and, when an alert store is
// configured, one alerts file. It returns the number of records written.
func (a *Archiver) Snapshot(ctx context.Context, now time.Time) (int, error) {
	total := 0

	positions, err := a.positions.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("s3blob: snapshot positions query: %w", err)
	}
	if len(positions) > 0 {
		buf, err := marshalJSONL(positions)
		if err != nil {
			return 0, fmt.Errorf("s3blob: snapshot positions marshal: %w", err)
		}
		path := snapshotPath("positions", now)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return 0, fmt.Errorf("s3blob: snapshot positions upload: %w", err)
		}
		total += len(positions)
	}

	if a.alerts != nil {
		alerts, err := a.alerts.List(ctx, domain.ListOpts{Limit: alertSnapshotLimit})
		if err != nil {
			return total, fmt.Errorf("s3blob: snapshot alerts query: %w", err)
		}
		if len(alerts) > 0 {
			buf, err := marshalJSONL(alerts)
			if err != nil {
				return total, fmt.Errorf("s3blob: snapshot alerts marshal: %w", err)
			}
			path := snapshotPath("alerts", now)
			if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
				return total, fmt.Errorf("s3blob: snapshot alerts upload: %w", err)
			}
			total += len(alerts)
		}
	}

	return total, nil
}

// Run snapshots on a fixed interval until the context is cancelled.
// Snapshot failures are logged, never fatal.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	a.logger.InfoContext(ctx, "archiver started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.InfoContext(ctx, "archiver stopped")
			return ctx.Err()
		case now := <-ticker.C:
			count, err := a.Snapshot(ctx, now.UTC())
			if err != nil {
				a.logger.ErrorContext(ctx, "snapshot failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			a.logger.InfoContext(ctx, "snapshot uploaded", slog.Int("records", count))
		}
	}
}

// snapshotPath builds the object key for one snapshot file.
//
//	archive/positions/2026-08-28T12-00-00Z.jsonl
//	archive/alerts/2026-08-28T12-00-00Z.jsonl
func snapshotPath(kind string, now time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, now.UTC().Format("2006-01-02T15-04-05Z"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
