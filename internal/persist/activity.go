package persist

import (
	"context"
	"errors"
	"sync"

	"github.com/crossarb/paperbot/internal/domain"
)

const (
	activityFile = "activity.json"
	// defaultActivityCap bounds the in-memory and persisted record count.
	defaultActivityCap = 1000
)

// ActivityLog implements domain.ActivitySink as a size-bounded append-only
// log, persisted through the crash-safe store. Oldest records are evicted
// when the cap is reached; the core never reads the log back.
type ActivityLog struct {
	store *Store
	cap   int

	mu      sync.Mutex
	records []domain.ActivityRecord
}

// NewActivityLog creates an activity log with the given capacity (<=0 means
// the default of 1000), loading any previously persisted records.
func NewActivityLog(ctx context.Context, store *Store, capacity int) (*ActivityLog, error) {
	if capacity <= 0 {
		capacity = defaultActivityCap
	}
	l := &ActivityLog{store: store, cap: capacity}

	var records []domain.ActivityRecord
	err := store.ReadJSONRelaxed(ctx, activityFile, &records)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if n := len(records); n > capacity {
		records = records[n-capacity:]
	}
	l.records = records
	return l, nil
}

// Append adds a record, evicting the oldest when full, and persists the log.
func (l *ActivityLog) Append(ctx context.Context, rec domain.ActivityRecord) error {
	l.mu.Lock()
	l.records = append(l.records, rec)
	if len(l.records) > l.cap {
		l.records = l.records[len(l.records)-l.cap:]
	}
	snapshot := make([]domain.ActivityRecord, len(l.records))
	copy(snapshot, l.records)
	l.mu.Unlock()

	return l.store.WriteJSON(ctx, activityFile, snapshot)
}

// Recent returns up to limit most recent records, newest last.
func (l *ActivityLog) Recent(limit int) []domain.ActivityRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.records) {
		limit = len(l.records)
	}
	out := make([]domain.ActivityRecord, limit)
	copy(out, l.records[len(l.records)-limit:])
	return out
}

var _ domain.ActivitySink = (*ActivityLog)(nil)
