package capture_routers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rapidaai/motioncam/api/capture-api/config"
	internal_ledger "github.com/rapidaai/motioncam/api/capture-api/internal/ledger"
	internal_session "github.com/rapidaai/motioncam/api/capture-api/internal/session"
	"github.com/rapidaai/motioncam/pkg/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotter struct {
	snap internal_session.Snapshot
}

func (f *fakeSnapshotter) Snapshot() internal_session.Snapshot { return f.snap }

type brokenLedger struct {
	internal_ledger.Store
}

func (brokenLedger) List(context.Context, int) ([]internal_ledger.SessionRecord, error) {
	return nil, errors.New("database is locked")
}

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{Name: "motioncam"}
	cfg.Capture.Prefix = "capture"
	cfg.Capture.OutputDir = "/var/cam"
	cfg.Motion.GPIO = "GPIO4"
	return cfg
}

func newLedger(t *testing.T) internal_ledger.Store {
	t.Helper()
	s, err := internal_ledger.NewSQLiteStore(filepath.Join(t.TempDir(), "l.db"), commons.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func serve(t *testing.T, ctrl *fakeSnapshotter, ledger internal_ledger.Store, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	engine := NewEngine(testConfig(), commons.NewNopLogger(), ctrl, ledger)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthz(t *testing.T) {
	rec, body := serve(t, &fakeSnapshotter{}, internal_ledger.NewNoopStore(), "/healthz/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["healthy"])
}

func TestReadiness(t *testing.T) {
	idle := &fakeSnapshotter{snap: internal_session.Snapshot{State: "idle"}}
	rec, body := serve(t, idle, newLedger(t), "/readiness/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ready"])

	down := &fakeSnapshotter{snap: internal_session.Snapshot{State: "shutdown"}}
	rec, _ = serve(t, down, newLedger(t), "/readiness/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, body = serve(t, idle, brokenLedger{}, "/readiness/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ledger unavailable", body["reason"])
}

func TestStatus(t *testing.T) {
	ctrl := &fakeSnapshotter{snap: internal_session.Snapshot{
		State:        "recording",
		NextSequence: 4,
		Session:      &internal_session.Session{ID: "abc", Sequence: 3},
	}}
	rec, body := serve(t, ctrl, internal_ledger.NewNoopStore(), "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "motioncam", body["service"])

	status := body["status"].(map[string]any)
	assert.Equal(t, "recording", status["state"])
	assert.Equal(t, float64(4), status["nextSequence"])
	assert.Equal(t, "abc", status["session"].(map[string]any)["id"])
}

func TestSessions(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()
	for seq := 0; seq < 3; seq++ {
		require.NoError(t, ledger.Begin(ctx, &internal_ledger.SessionRecord{Sequence: seq, BasePath: "c", StartedAt: time.Now()}))
	}

	rec, body := serve(t, &fakeSnapshotter{}, ledger, "/v1/sessions?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])
	sessions := body["sessions"].([]any)
	assert.Equal(t, float64(2), sessions[0].(map[string]any)["sequence"])

	rec, _ = serve(t, &fakeSnapshotter{}, ledger, "/v1/sessions?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = serve(t, &fakeSnapshotter{}, internal_ledger.NewNoopStore(), "/v1/sessions")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["sessions"])

	rec, _ = serve(t, &fakeSnapshotter{}, brokenLedger{}, "/v1/sessions")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
