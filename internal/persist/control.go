package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
)

const controlFile = "control.json"

// ControlStore implements domain.ControlStore on the crash-safe file store.
// An operator surface (dashboard or CLI) writes the same file; the advisory
// lock is the only coordination between the two processes.
type ControlStore struct {
	store *Store
}

// NewControlStore creates a ControlStore backed by the given state store.
func NewControlStore(store *Store) *ControlStore {
	return &ControlStore{store: store}
}

// Load reads the control flags. A missing file means defaults (not paused,
// kill switch off). A lock timeout is reported as domain.ErrControlUnavailable
// so the admission gate fails closed instead of trading on flags it could not
// confirm.
func (c *ControlStore) Load(ctx context.Context) (domain.ControlState, error) {
	var state domain.ControlState
	err := c.store.ReadJSON(ctx, controlFile, &state)
	if err == nil {
		return state, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ControlState{}, nil
	}
	if errors.Is(err, domain.ErrLockTimeout) {
		return domain.ControlState{}, fmt.Errorf("persist: load control state: %w", domain.ErrControlUnavailable)
	}
	return domain.ControlState{}, err
}

// Store durably writes the control flags, stamping UpdatedAt.
func (c *ControlStore) Store(ctx context.Context, state domain.ControlState) error {
	state.UpdatedAt = time.Now().UTC()
	return c.store.WriteJSON(ctx, controlFile, state)
}

// SetPaused flips the paused flag with the given reason.
func (c *ControlStore) SetPaused(ctx context.Context, paused bool, reason string) error {
	state, err := c.Load(ctx)
	if err != nil {
		return err
	}
	state.Paused = paused
	state.Reason = reason
	return c.Store(ctx, state)
}

// ActivateKillSwitch sets the kill switch. There is deliberately no helper to
// clear it; releasing the kill switch requires editing the control file.
func (c *ControlStore) ActivateKillSwitch(ctx context.Context, reason string) error {
	state, err := c.Load(ctx)
	if err != nil {
		return err
	}
	state.KillSwitch = true
	state.Reason = reason
	return c.Store(ctx, state)
}

var _ domain.ControlStore = (*ControlStore)(nil)
