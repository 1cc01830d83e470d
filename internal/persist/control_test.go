package persist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crossarb/paperbot/internal/domain"
)

func TestControlStoreDefaults(t *testing.T) {
	cs := NewControlStore(testStore(t))

	state, err := cs.Load(context.Background())
	require.NoError(t, err)
	require.False(t, state.Paused)
	require.False(t, state.KillSwitch)
}

func TestControlStoreRoundTrip(t *testing.T) {
	cs := NewControlStore(testStore(t))
	ctx := context.Background()

	require.NoError(t, cs.Store(ctx, domain.ControlState{Paused: true, Reason: "maintenance"}))

	state, err := cs.Load(ctx)
	require.NoError(t, err)
	require.True(t, state.Paused)
	require.False(t, state.KillSwitch)
	require.Equal(t, "maintenance", state.Reason)
	require.WithinDuration(t, time.Now().UTC(), state.UpdatedAt, 5*time.Second)
}

func TestControlStoreKillSwitch(t *testing.T) {
	cs := NewControlStore(testStore(t))
	ctx := context.Background()

	require.NoError(t, cs.ActivateKillSwitch(ctx, "drawdown breach"))

	state, err := cs.Load(ctx)
	require.NoError(t, err)
	require.True(t, state.KillSwitch)
	require.Equal(t, "drawdown breach", state.Reason)
}

func TestControlStoreUnavailableOnLockTimeout(t *testing.T) {
	s := testStore(t)
	cs := NewControlStore(s)
	ctx := context.Background()

	require.NoError(t, cs.Store(ctx, domain.ControlState{Paused: true}))

	holder := NewFileLock(s.path(controlFile)+".lock", time.Second)
	release, err := holder.Acquire(ctx)
	require.NoError(t, err)
	defer release()

	_, err = cs.Load(ctx)
	require.ErrorIs(t, err, domain.ErrControlUnavailable)
}

func TestActivityLogBounded(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	log, err := NewActivityLog(ctx, s, 3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(ctx, domain.ActivityRecord{
			Timestamp: time.Now().UTC(),
			Type:      domain.ActivityOpportunityFound,
			Fields:    map[string]any{"seq": i},
		}))
	}

	recent := log.Recent(0)
	require.Len(t, recent, 3)
	require.EqualValues(t, 2, recent[0].Fields["seq"])
	require.EqualValues(t, 4, recent[2].Fields["seq"])

	// Reload from disk keeps only the capped tail.
	reloaded, err := NewActivityLog(ctx, s, 3)
	require.NoError(t, err)
	require.Len(t, reloaded.Recent(0), 3)
}
