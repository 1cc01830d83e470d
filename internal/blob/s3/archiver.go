package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
)

// BlobWriter is the narrow upload interface the archiver requires.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ActivitySource provides read access to the bounded activity log for
// archival purposes.
type ActivitySource interface {
	Recent(limit int) []domain.ActivityRecord
}

// Archiver periodically uploads the ledger snapshot and recent activity to
// object storage. Uploads are a remote convenience copy; the local crash-safe
// files remain the source of truth, so upload failures are logged and the
// next tick retries from fresh state.
type Archiver struct {
	writer   BlobWriter
	ledger   domain.LedgerStore
	activity ActivitySource
	interval time.Duration
	logger   *slog.Logger
}

// NewArchiver creates an Archiver uploading every interval.
func NewArchiver(writer BlobWriter, ledger domain.LedgerStore, activity ActivitySource, interval time.Duration, logger *slog.Logger) *Archiver {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Archiver{
		writer:   writer,
		ledger:   ledger,
		activity: activity,
		interval: interval,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// Run uploads on a fixed interval until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Upload(ctx); err != nil {
				a.logger.Warn("snapshot upload failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Upload pushes the current ledger snapshot and recent activity records as
// timestamped JSON objects.
func (a *Archiver) Upload(ctx context.Context) error {
	now := time.Now().UTC()

	snap, err := a.ledger.Load(ctx)
	if err != nil {
		return fmt.Errorf("s3blob: load ledger snapshot: %w", err)
	}
	if err := a.putJSON(ctx, snapshotPath("ledger", now), snap); err != nil {
		return err
	}

	if a.activity != nil {
		records := a.activity.Recent(0)
		if len(records) > 0 {
			if err := a.putJSON(ctx, snapshotPath("activity", now), records); err != nil {
				return err
			}
		}
	}

	a.logger.Debug("snapshot uploaded", slog.Time("at", now))
	return nil
}

func (a *Archiver) putJSON(ctx context.Context, path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("s3blob: marshal %s: %w", path, err)
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}
	return nil
}

// snapshotPath builds the S3 key for a snapshot, partitioned by day:
//
//	snapshots/ledger/2025-08-31/153000.json
func snapshotPath(kind string, at time.Time) string {
	return fmt.Sprintf("snapshots/%s/%s/%s.json", kind, at.Format("2006-01-02"), at.Format("150405"))
}
