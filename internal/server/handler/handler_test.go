package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crossarb/paperbot/internal/domain"
	"github.com/crossarb/paperbot/internal/notify"
	"github.com/crossarb/paperbot/internal/persist"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

type stubEngine struct {
	provenance domain.Provenance
	cycleTook  time.Duration
	decision   domain.GateDecision
	stats      domain.PerformanceStats
	positions  []domain.ValuedPosition
}

func (s *stubEngine) Provenance() domain.Provenance { return s.provenance }
func (s *stubEngine) LastCycleDuration() time.Duration { return s.cycleTook }
func (s *stubEngine) LastDecision() domain.GateDecision { return s.decision }
func (s *stubEngine) Stats(context.Context) domain.PerformanceStats { return s.stats }
func (s *stubEngine) Positions(context.Context) []domain.ValuedPosition { return s.positions }

type stubPersist struct {
	failures uint64
}

func (s *stubPersist) WriteFailures() uint64 { return s.failures }

type stubActivity struct {
	records []domain.ActivityRecord
}

func (s *stubActivity) Recent(limit int) []domain.ActivityRecord {
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	return s.records[len(s.records)-limit:]
}

type recordingNotifier struct {
	msgs []notify.Message
}

func (r *recordingNotifier) Alert(_ context.Context, msg notify.Message) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func newControlStore(t *testing.T) *persist.ControlStore {
	t.Helper()
	store, err := persist.New(persist.Config{Dir: t.TempDir()}, testLogger())
	require.NoError(t, err)
	return persist.NewControlStore(store)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheckOK(t *testing.T) {
	h := NewHealthHandler(&stubEngine{provenance: domain.ProvenanceLive, cycleTook: 40 * time.Millisecond}, &stubPersist{}, testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "live", body["data_provenance"])
	require.EqualValues(t, 0, body["write_failures"])
}

func TestHealthCheckDegradedOnWriteFailures(t *testing.T) {
	h := NewHealthHandler(&stubEngine{}, &stubPersist{failures: 3}, testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "degraded", body["status"])
	require.EqualValues(t, 3, body["write_failures"])
}

func TestGetStatusIncludesGateAndControl(t *testing.T) {
	control := newControlStore(t)
	require.NoError(t, control.SetPaused(context.Background(), true, "maintenance"))

	eng := &stubEngine{
		decision: domain.GateDecision{Allowed: false, Reason: domain.DenyReasonPaused, CheckedAt: time.Now().UTC()},
		stats:    domain.PerformanceStats{CashBalance: 10_010, TotalTrades: 1},
	}
	h := NewStatusHandler(eng, control, &stubActivity{}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	gate, ok := body["gate"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, false, gate["allowed"])
	require.Equal(t, "paused", gate["reason"])

	ctrl, ok := body["control"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, ctrl["available"])
	require.Equal(t, true, ctrl["paused"])
	require.Equal(t, "maintenance", ctrl["reason"])
}

func TestListActivityAppliesLimit(t *testing.T) {
	activity := &stubActivity{}
	for i := 0; i < 5; i++ {
		activity.records = append(activity.records, domain.ActivityRecord{
			Timestamp: time.Now().UTC(),
			Type:      domain.ActivityOpportunityFound,
		})
	}
	h := NewStatusHandler(&stubEngine{}, newControlStore(t), activity, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ListActivity(rec, httptest.NewRequest(http.MethodGet, "/api/activity?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.EqualValues(t, 2, body["count"])
}

func TestListExecutionsWithoutHistoryStore(t *testing.T) {
	h := NewStatusHandler(&stubEngine{}, newControlStore(t), &stubActivity{}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ListExecutions(rec, httptest.NewRequest(http.MethodGet, "/api/executions", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestControlPauseAndResume(t *testing.T) {
	ctx := context.Background()
	control := newControlStore(t)
	h := NewControlHandler(control, nil, testLogger())

	payload := bytes.NewBufferString(`{"reason":"lunch"}`)
	rec := httptest.NewRecorder()
	h.Pause(rec, httptest.NewRequest(http.MethodPost, "/api/control/pause", payload))
	require.Equal(t, http.StatusOK, rec.Code)

	state, err := control.Load(ctx)
	require.NoError(t, err)
	require.True(t, state.Paused)
	require.Equal(t, "lunch", state.Reason)

	rec = httptest.NewRecorder()
	h.Resume(rec, httptest.NewRequest(http.MethodPost, "/api/control/resume", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	state, err = control.Load(ctx)
	require.NoError(t, err)
	require.False(t, state.Paused)
}

func TestControlKillNotifies(t *testing.T) {
	control := newControlStore(t)
	notifier := &recordingNotifier{}
	h := NewControlHandler(control, notifier, testLogger())

	payload := bytes.NewBufferString(`{"reason":"runaway loss"}`)
	rec := httptest.NewRecorder()
	h.Kill(rec, httptest.NewRequest(http.MethodPost, "/api/control/kill", payload))
	require.Equal(t, http.StatusOK, rec.Code)

	state, err := control.Load(context.Background())
	require.NoError(t, err)
	require.True(t, state.KillSwitch)
	require.Len(t, notifier.msgs, 1)
	require.Equal(t, domain.ActivityKillSwitch, notifier.msgs[0].Event)
	require.Equal(t, "runaway loss", notifier.msgs[0].Body)
}
