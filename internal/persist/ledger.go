package persist

import (
	"context"

	"github.com/crossarb/paperbot/internal/domain"
)

const ledgerFile = "ledger.json"

// LedgerStore implements domain.LedgerStore on the crash-safe file store.
type LedgerStore struct {
	store *Store
}

// NewLedgerStore creates a LedgerStore backed by the given state store.
func NewLedgerStore(store *Store) *LedgerStore {
	return &LedgerStore{store: store}
}

// Load rehydrates the last persisted ledger snapshot. It returns
// domain.ErrNotFound (wrapped) when no snapshot exists, in which case the
// caller initializes a fresh ledger from the configured starting balance. A
// lock timeout falls back to an unlocked read: atomic replacement keeps the
// file valid, so stale-but-valid beats unavailable here.
func (l *LedgerStore) Load(ctx context.Context) (domain.LedgerSnapshot, error) {
	var snap domain.LedgerSnapshot
	if err := l.store.ReadJSONRelaxed(ctx, ledgerFile, &snap); err != nil {
		return domain.LedgerSnapshot{}, err
	}
	if snap.Positions == nil {
		snap.Positions = make(map[string]domain.Position)
	}
	return snap, nil
}

// Store durably writes the ledger snapshot.
func (l *LedgerStore) Store(ctx context.Context, snap domain.LedgerSnapshot) error {
	return l.store.WriteJSON(ctx, ledgerFile, snap)
}

var _ domain.LedgerStore = (*LedgerStore)(nil)
